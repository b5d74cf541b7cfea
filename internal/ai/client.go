package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var codeBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// Client работает с OpenAI-совместимым API: чат, распознавание фото и расшифровка аудио.
type Client struct {
	baseURL         string
	apiKey          string
	model           string
	visionModel     string
	transcribeModel string
	httpClient      *http.Client
}

type Option func(*Client)

func WithVisionModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.visionModel = model
		}
	}
}

func WithTranscribeModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.transcribeModel = model
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}

	c := &Client{
		baseURL:         baseURL,
		apiKey:          apiKey,
		model:           model,
		visionModel:     model,
		transcribeModel: "whisper-1",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TextCheck описывает ответ модели на проверку текста.
type TextCheck struct {
	IsValid  bool    `json:"isvalid"`
	Question *string `json:"question"`
}

// ImageCheck описывает ответ модели на сверку фото с описанием.
type ImageCheck struct {
	Valid          bool         `json:"valid"`
	Question       *string      `json:"question"`
	Category       *string      `json:"category"`
	Priority       *string      `json:"priority"`
	Department     *string      `json:"department"`
	ResolutionDays *FlexibleInt `json:"resolution_days"`
}

// FlexibleInt принимает число как 7, 7.0 или "7".
type FlexibleInt int

func (f *FlexibleInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("ai: resolution_days не число: %q", s)
	}
	*f = FlexibleInt(v)
	return nil
}

// ValidateComplaint проверяет, что текст описывает проблему.
func (c *Client) ValidateComplaint(ctx context.Context, text string) (TextCheck, error) {
	return c.checkText(ctx, fmt.Sprintf(complaintCheckPrompt, text))
}

// ValidateLocation проверяет, что текст указывает на конкретное место.
func (c *Client) ValidateLocation(ctx context.Context, text string) (TextCheck, error) {
	return c.checkText(ctx, fmt.Sprintf(locationCheckPrompt, text))
}

func (c *Client) checkText(ctx context.Context, prompt string) (TextCheck, error) {
	messages := []chatMessage{
		{Role: "system", Content: jsonOnlySystemPrompt},
		{Role: "user", Content: prompt},
	}
	resp, err := c.chatCompletionWithOptions(ctx, c.model, messages, 300, 0.1)
	if err != nil {
		return TextCheck{}, err
	}

	var check TextCheck
	if err := decodeJSONFromText(resp, &check); err != nil {
		return TextCheck{}, err
	}
	return check, nil
}

// AnalyzeImage сверяет фото с описанием и, если они совпадают, классифицирует жалобу.
func (c *Client) AnalyzeImage(ctx context.Context, image []byte, mimeType, description string) (ImageCheck, error) {
	if len(image) == 0 {
		return ImageCheck{}, fmt.Errorf("ai: пустое изображение")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	messages := []chatMessage{
		{Role: "system", Content: jsonOnlySystemPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: fmt.Sprintf(imageCheckPrompt, description)},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		}},
	}
	resp, err := c.chatCompletionWithOptions(ctx, c.visionModel, messages, 500, 0.1)
	if err != nil {
		return ImageCheck{}, err
	}

	var check ImageCheck
	if err := decodeJSONFromText(resp, &check); err != nil {
		return ImageCheck{}, err
	}
	return check, nil
}

// Acknowledge пишет короткое подтверждение жалобы с просьбой указать место.
func (c *Client) Acknowledge(ctx context.Context, description string) (string, error) {
	return c.prose(ctx, fmt.Sprintf(acknowledgePrompt, description, description), 0.8)
}

// AskForPhoto пишет короткую просьбу прислать фото проблемы.
func (c *Client) AskForPhoto(ctx context.Context, description string) (string, error) {
	return c.prose(ctx, fmt.Sprintf(photoRequestPrompt, description, description), 0.7)
}

func (c *Client) prose(ctx context.Context, prompt string, temperature float64) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: proseSystemPrompt},
		{Role: "user", Content: prompt},
	}
	resp, err := c.chatCompletionWithOptions(ctx, c.model, messages, 120, temperature)
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", fmt.Errorf("ai: пустой ответ")
	}
	return resp, nil
}

// Transcribe расшифровывает голосовое сообщение через /audio/transcriptions.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("ai: baseURL не задан")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("ai: пустое аудио")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("model", c.transcribeModel); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", "voice"+audioExtension(mimeType))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("audio/transcriptions"), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ai: код ответа %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("ai: пустая расшифровка")
	}
	return text, nil
}

func audioExtension(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/amr":
		return ".amr"
	default:
		// голосовые WhatsApp приходят как audio/ogg; codecs=opus
		return ".ogg"
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chatCompletionWithOptions выполняет запрос к chat/completions с настраиваемыми параметрами.
func (c *Client) chatCompletionWithOptions(ctx context.Context, model string, messages []chatMessage, maxTokens int, temperature float64) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("ai: baseURL не задан")
	}

	payload := map[string]any{
		"model":       model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("chat/completions"), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		json.NewDecoder(resp.Body).Decode(&errorBody)
		return "", fmt.Errorf("ai: код ответа %d: %v", resp.StatusCode, errorBody)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("ai: пустой ответ")
	}

	return result.Choices[0].Message.Content, nil
}

func (c *Client) endpoint(path string) string {
	url := c.baseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url + path
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// decodeJSONFromText извлекает JSON из ответа модели, который может быть обёрнут
// в markdown или окружён пояснениями.
func decodeJSONFromText(text string, v any) error {
	// Сначала markdown блок: внутри пояснений тоже бывают фигурные скобки
	if m := codeBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}

	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart != -1 && jsonEnd > jsonStart {
		if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), v); err != nil {
			return fmt.Errorf("ai: некорректный JSON в ответе: %w", err)
		}
		return nil
	}

	return fmt.Errorf("ai: в ответе нет JSON")
}
