// Package notify delivers firing-pool alerts to a downstream push
// channel. The classifier decides whether and once; this package owns
// formatting and delivery.
package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"gap-monitor/internal/classify"
)

// Sink receives at most one notification per code per day.
type Sink interface {
	Notify(ctx context.Context, n classify.Notification) error
}

// linePushEndpoint is the LINE Messaging API push URL.
const linePushEndpoint = "https://api.line.me/v2/bot/message/push"

// LineSink pushes alerts through the LINE Messaging API.
type LineSink struct {
	client *resty.Client
	userID string
}

// NewLineSink creates a sink with the given channel access token and
// target user.
func NewLineSink(token, userID string) *LineSink {
	client := resty.New().
		SetBaseURL(linePushEndpoint).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")

	return &LineSink{client: client, userID: userID}
}

// SetBaseURL overrides the push endpoint, for tests.
func (s *LineSink) SetBaseURL(url string) {
	s.client.SetBaseURL(url)
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePush struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

// Notify implements Sink.
func (s *LineSink) Notify(ctx context.Context, n classify.Notification) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(linePush{
			To:       s.userID,
			Messages: []lineMessage{{Type: "text", Text: formatAlert(n)}},
		}).
		Post("")
	if err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push notification: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// formatAlert renders the alert text.
func formatAlert(n classify.Notification) string {
	msg := fmt.Sprintf(
		"Momentum gap signal\n%s %s\nprice %.2f (gap +%.2f%%)\nP-Loc %.2f\nvolume %.0f lots / %.2f hundred million",
		n.Code, n.Name, n.Price, n.GapRatio*100, n.PositionRatio, n.VolumeLots, n.Amount/100_000_000,
	)
	if n.HasDerivative {
		msg += "\nsingle-stock futures listed"
	}
	return msg
}

// LogSink writes alerts to the log instead of a push channel. Used
// when LINE credentials are absent and during replay.
type LogSink struct {
	log *logrus.Entry
}

// NewLogSink creates a log-only sink.
func NewLogSink(log *logrus.Entry) *LogSink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogSink{log: log}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, n classify.Notification) error {
	s.log.WithFields(logrus.Fields{
		"code":  n.Code,
		"name":  n.Name,
		"price": n.Price,
		"p_loc": n.PositionRatio,
	}).Info("signal fired")
	return nil
}
