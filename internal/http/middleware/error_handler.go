package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

// Recovery перехватывает panic в хэндлере и отвечает 500 без деталей.
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(logrus.Fields{
			"panic":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("panic в обработчике запроса")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    string(apperror.ErrCodeInternal),
				"message": "внутренняя ошибка сервера",
			},
		})
	})
}

// RequestLogger пишет строку лога на каждый запрос. Тело не логируется:
// в webhook приходят номера телефонов и тексты жалоб.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("запрос завершился ошибкой")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("запрос отклонён")
		default:
			entry.Debug("запрос обработан")
		}
	}
}
