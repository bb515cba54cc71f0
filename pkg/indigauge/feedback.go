package indigauge

import (
	"errors"
	"time"

	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/transport"

	json "github.com/goccy/go-json"
)

// Feedback is a player feedback message. Screenshot, if set, must be PNG bytes
// and is uploaded after the feedback itself is accepted.
type Feedback struct {
	Message    string
	Category   string
	Question   string
	Screenshot []byte
}

// ErrEmptyFeedback is returned for a feedback without a message.
var ErrEmptyFeedback = errors.New("feedback message is empty")

// SendFeedback sends f asynchronously. The result is only logged.
func (c *Client) SendFeedback(f Feedback) error {
	if !c.reg.Active() {
		return ErrNotInitialized
	}
	if f.Message == "" {
		return ErrEmptyFeedback
	}
	if f.Category == "" {
		f.Category = "general"
	}

	body, err := json.Marshal(model.FeedbackPayload{
		Message:   f.Message,
		ElapsedMs: c.reg.ElapsedMs(time.Now()),
		Question:  f.Question,
		Category:  f.Category,
	})
	if err != nil {
		return err
	}

	token := c.reg.Token()
	screenshot := f.Screenshot
	c.mgr.Submit(transport.Request{
		Kind:  transport.KindFeedback,
		Path:  "feedback",
		Body:  body,
		Token: token,
	}, func(res transport.Result) {
		if !res.OK() {
			c.log.Error().Err(res.Err).Msg("failed to send feedback")
			return
		}
		var id model.IDResponse
		if err := json.Unmarshal(res.Body, &id); err != nil || id.ID == "" {
			c.log.Error().Err(err).Msg("feedback response has no id")
			return
		}
		c.log.Info().Str("feedback_id", id.ID).Msg("sent feedback")

		if len(screenshot) == 0 {
			return
		}
		c.mgr.Submit(transport.Request{
			Kind:        transport.KindScreenshot,
			Path:        "feedback/" + id.ID + "/screenshot",
			Body:        screenshot,
			ContentType: "image/png",
			Token:       token,
		}, func(res transport.Result) {
			if !res.OK() {
				c.log.Error().Err(res.Err).Msg("failed to send feedback screenshot")
				return
			}
			c.log.Info().Str("feedback_id", id.ID).Msg("sent feedback screenshot")
		})
	})
	return nil
}
