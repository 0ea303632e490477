package natshandler

import (
	"context"
	"encoding/json"
	"time"

	"codemate/service"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectExecute                = "codemate.execute.request"
	SubjectValidate               = "codemate.validate.request"
	SubjectDiff                   = "codemate.diff.request"
	SubjectExtract                = "codemate.extract.request"
	SubjectAddTestCase            = "codemate.tests.add.request"
	SubjectGenerateTests          = "codemate.generate.tests.request"
	SubjectGenerateImplementation = "codemate.generate.implementation.request"
	SubjectAutoFix                = "codemate.autofix.request"

	queueGroup = "codemate"
)

// Publisher sends a reply. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type errorReply struct {
	StatusMessage string `json:"status_message"`
	Error         string `json:"error"`
}

type Handler struct {
	svc     *service.CodeService
	pub     Publisher
	logger  *zap.Logger
	timeout time.Duration
}

func NewHandler(svc *service.CodeService, pub Publisher, logger *zap.Logger, timeout time.Duration) *Handler {
	return &Handler{svc: svc, pub: pub, logger: logger, timeout: timeout}
}

// Routes maps every subject to its message handler.
func (h *Handler) Routes() map[string]nats.MsgHandler {
	return map[string]nats.MsgHandler{
		SubjectExecute:                serve(h, h.svc.Execute),
		SubjectValidate:               serve(h, h.svc.Validate),
		SubjectDiff:                   serve(h, h.svc.Diff),
		SubjectExtract:                serve(h, h.svc.ExtractTests),
		SubjectAddTestCase:            serve(h, h.svc.AddTestCase),
		SubjectGenerateTests:          serve(h, h.svc.GenerateTests),
		SubjectGenerateImplementation: serve(h, h.svc.GenerateImplementation),
		SubjectAutoFix:                serve(h, h.svc.AutoFix),
	}
}

// Subscribe joins the queue group on every subject.
func (h *Handler) Subscribe(nc *nats.Conn) ([]*nats.Subscription, error) {
	var subs []*nats.Subscription
	for subject, handler := range h.Routes() {
		sub, err := nc.QueueSubscribe(subject, queueGroup, handler)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// serve decodes the request, calls the service and replies with its
// response. Service errors are already described inside the response.
func serve[Req any, Resp any](h *Handler, call func(context.Context, Req) (Resp, error)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.logger.Warn("Failed to parse request", zap.String("subject", msg.Subject), zap.Error(err))
			h.reply(msg, errorReply{StatusMessage: "Invalid Request Format", Error: err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		res, err := call(ctx, req)
		if err != nil {
			h.logger.Info("Request failed", zap.String("subject", msg.Subject), zap.Error(err))
		}
		h.reply(msg, res)
	}
}

func (h *Handler) reply(msg *nats.Msg, v any) {
	if msg.Reply == "" {
		h.logger.Warn("Dropping response to request without reply subject", zap.String("subject", msg.Subject))
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal response", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if err := h.pub.Publish(msg.Reply, data); err != nil {
		h.logger.Error("Failed to publish response", zap.String("reply", msg.Reply), zap.Error(err))
	}
}
