package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/civic-intake/internal/ai"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	infraai "github.com/ignatzorin/civic-intake/internal/infrastructure/ai"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

func newAdapter(t *testing.T, content string, status int) *infraai.OracleAdapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return infraai.NewOracleAdapter(ai.NewClient(srv.URL, "key", "model"))
}

func TestValidateComplaintText_AcceptKeepsInputVerbatim(t *testing.T) {
	adapter := newAdapter(t, `{"isvalid": true, "question": null}`, http.StatusOK)

	verdict, err := adapter.ValidateComplaintText(context.Background(), "  broken streetlight on MG Road ")
	require.NoError(t, err)

	text, ok := verdict.Accepted()
	assert.True(t, ok)
	assert.Equal(t, "  broken streetlight on MG Road ", text)
	_, rejected := verdict.Rejected()
	assert.False(t, rejected)
}

func TestValidateComplaintText_RejectWithoutQuestionUsesDefault(t *testing.T) {
	adapter := newAdapter(t, `{"isvalid": false, "question": ""}`, http.StatusOK)

	verdict, err := adapter.ValidateComplaintText(context.Background(), "hi")
	require.NoError(t, err)

	prompt, ok := verdict.Rejected()
	assert.True(t, ok)
	assert.Contains(t, prompt, "Please tell me about any issue")
}

func TestValidateLocationText_Error(t *testing.T) {
	adapter := newAdapter(t, "", http.StatusBadGateway)

	_, err := adapter.ValidateLocationText(context.Background(), "MG Road")
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeOracleUnavailable, apperror.CodeOf(err))
}

func TestClassifyImage_NormalizesClassification(t *testing.T) {
	adapter := newAdapter(t, `{"valid": true, "category": "Road Infrastructure", "priority": "urgent", "department": null, "resolution_days": 90}`, http.StatusOK)

	verdict, err := adapter.ClassifyImage(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0}, "pothole")
	require.NoError(t, err)

	c, ok := verdict.Accepted()
	require.True(t, ok)
	assert.Equal(t, valueobject.CategoryRoadInfrastructure, c.Category)
	assert.Equal(t, valueobject.DefaultPriority, c.Priority)
	assert.Equal(t, valueobject.DefaultDepartment, c.Department)
	assert.Equal(t, valueobject.MaxResolutionDays, c.ResolutionDays)
}

func TestClassifyImage_Rejected(t *testing.T) {
	adapter := newAdapter(t, `{"valid": false, "question": "Please send a photo of the pothole."}`, http.StatusOK)

	verdict, err := adapter.ClassifyImage(context.Background(), []byte("not really an image"), "pothole")
	require.NoError(t, err)

	prompt, ok := verdict.Rejected()
	assert.True(t, ok)
	assert.Equal(t, "Please send a photo of the pothole.", prompt)
	_, accepted := verdict.Accepted()
	assert.False(t, accepted)
}
