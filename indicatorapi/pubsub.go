package indicatorapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/mmdatafocus/indicator_monitor/workflow"
	"github.com/sirupsen/logrus"
)

type PubSubPushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		MessageID  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PubSubPushHandler runs the synchronous trigger for fact-written events.
// Malformed or unroutable messages are acked with 204; transient failures return 500 so Pub/Sub redelivers.
func PubSubPushHandler(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		var msg config.FactWrittenMessage
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		code := strings.TrimSpace(msg.IndicatorCode)
		if code == "" {
			c.Status(http.StatusNoContent)
			return
		}

		ctx := utils.SetTriggerInContext(c.Request.Context(), workflow.TriggerFact)
		if msg.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
		}
		_, err = p.OnFactWritten(ctx, code)
		switch {
		case err == nil:
			c.Status(http.StatusNoContent)
		case errors.Is(err, workflow.ErrIndicatorNotFound), errors.Is(err, workflow.ErrConfiguration):
			logger.WithFields(logrus.Fields{
				"field":          "PubSubPushHandler",
				"indicator_code": code,
				"message_id":     envelope.Message.MessageID,
			}).Warn("dropping fact event: " + err.Error())
			c.Status(http.StatusNoContent)
		default:
			config.LogError(logger, "indicatorapi", "PubSubPushHandler", "fact written event", map[string]any{
				"indicator_code": code,
				"message_id":     envelope.Message.MessageID,
			}, err)
			c.Status(http.StatusInternalServerError)
		}
	}
}
