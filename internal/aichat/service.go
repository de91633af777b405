// AngelaMos | 2026
// service.go

package aichat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const systemPersona = `You are the design assistant of an EDA platform.
You help engineers with PCB layout, chip synthesis, and platform
simulation questions. Answer concisely and point to the relevant tool
(pcbDesignTool, chipSynthesisTool, platformSimulationTool) when one
applies.`

// Conversations are ephemeral: the caller carries the history, nothing
// is persisted server-side.

type ChatMessage struct {
	Role      string    `json:"role" validate:"required,oneof=user assistant"`
	Content   string    `json:"content" validate:"required,max=8000"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatRequest struct {
	Message string        `json:"message" validate:"required,max=8000"`
	History []ChatMessage `json:"history" validate:"max=50,dive"`
}

type ChatResponse struct {
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

// UsageMeter spends one AI use for the calling account; unlimited
// accounts pass through untouched.
type UsageMeter interface {
	ConsumeAIUse(ctx context.Context, userID string) error
}

type Service struct {
	generator TextGenerator
	meter     UsageMeter
	validate  *validator.Validate
}

func NewService(generator TextGenerator, meter UsageMeter) *Service {
	return &Service{
		generator: generator,
		meter:     meter,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) Chat(
	ctx context.Context,
	userID string,
	req ChatRequest,
) (*ChatResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	if err := s.meter.ConsumeAIUse(ctx, userID); err != nil {
		return nil, err
	}

	reply, err := s.generator.Generate(
		ctx, systemPersona, renderPrompt(req))
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Reply:     reply,
		Timestamp: time.Now().UTC(),
	}, nil
}

func renderPrompt(req ChatRequest) string {
	if len(req.History) == 0 {
		return req.Message
	}

	var b strings.Builder
	for _, msg := range req.History {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&b, "user: %s", req.Message)

	return b.String()
}
