package tool

import (
	"context"

	"github.com/CZERTAINLY/Polymarker/internal/model"
)

// Web runs a job through the remote polymarker service. It is not
// implemented, every job fails to start.
type Web struct {
	*base
}

func (w *Web) Type() Type {
	return TypeWeb
}

func (w *Web) Log() string {
	return ""
}

func (w *Web) ParseParameters(context.Context, *model.ParamSet) error {
	return model.ErrNotImplemented
}

func (w *Web) Run(context.Context) model.OperationStatus {
	return w.job.Fail(model.StatusFailedToStart, model.ErrNotImplemented)
}

func (w *Web) Status(context.Context, bool) model.OperationStatus {
	return w.job.Status()
}

func (w *Web) ComputeResult(context.Context) error {
	return model.ErrNotImplemented
}

func (w *Web) Close() {}
