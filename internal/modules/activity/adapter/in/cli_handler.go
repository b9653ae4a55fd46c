package in

import (
	"context"
	"time"

	"mindmosaic/internal/modules/activity/dto"
	activityin "mindmosaic/internal/modules/activity/port/in"
)

type CLIHandler struct {
	usecase activityin.Usecase
}

func NewCLIHandler(usecase activityin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Moods(ctx context.Context) ([]dto.MoodOutput, error) {
	return h.usecase.Moods(ctx)
}

func (h CLIHandler) Activities(ctx context.Context, mood string) ([]dto.ActivityOutput, error) {
	return h.usecase.Activities(ctx, mood)
}

// Run selects and starts activityID, then ticks every interval until the
// session ends. Cancelling ctx dismisses the session, which aborts it.
func (h CLIHandler) Run(ctx context.Context, activityID string, interval time.Duration, onTick func(dto.SessionOutput)) (dto.SessionOutput, error) {
	if _, err := h.usecase.Select(ctx, activityID); err != nil {
		return dto.SessionOutput{}, err
	}
	out, err := h.usecase.Start(ctx)
	if err != nil {
		_, _ = h.usecase.CancelSelection(context.WithoutCancel(ctx))
		return out, err
	}
	if onTick != nil {
		onTick(out)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return h.usecase.OnSurfaceDismissed(context.WithoutCancel(ctx))
		case <-ticker.C:
			out, err := h.usecase.Tick(ctx)
			if err != nil {
				return out, err
			}
			if out.Outcome != "" {
				return out, nil
			}
			if onTick != nil {
				onTick(out)
			}
		}
	}
}

// Subscribe forwards every session transition to listener until the
// returned function is called.
func (h CLIHandler) Subscribe(listener func(dto.TransitionEvent)) func() {
	return h.usecase.Subscribe(listener)
}

func (h CLIHandler) Close(ctx context.Context) error {
	return h.usecase.Close(ctx)
}
