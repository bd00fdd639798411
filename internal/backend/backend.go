// Package backend is the data-access contract the intake and review
// controllers are written against. Every call settles into a Result.
package backend

import (
	"context"

	appuc "accelerator-portal/internal/usecase/application"
	"accelerator-portal/internal/usecase/analytics"
)

const MsgUnexpected = "An unexpected error occurred"

type (
	Application  = appuc.ApplicationDTO
	Submission   = appuc.CreateInput
	Created      = appuc.CreatedDTO
	DetailsPatch = appuc.DetailsPatch
	Analytics    = analytics.Snapshot
)

// Result is the {success, data, message} envelope.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func OK[T any](v T) Result[T] { return Result[T]{Success: true, Data: &v} }

func Fail[T any](msg string) Result[T] {
	if msg == "" {
		msg = MsgUnexpected
	}
	return Result[T]{Message: msg}
}

type Backend interface {
	CreateApplication(ctx context.Context, s Submission) Result[Created]
	ListApplications(ctx context.Context) Result[[]Application]
	GetApplicationByID(ctx context.Context, id string) Result[Application]
	UpdateApplicationStatus(ctx context.Context, id, status string) Result[struct{}]
	UpdateApplicationDetails(ctx context.Context, id string, p DetailsPatch) Result[struct{}]
	GetApplicationAnalytics(ctx context.Context) Result[Analytics]
}
