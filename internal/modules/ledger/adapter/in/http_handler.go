package in

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"mindmosaic/internal/modules/ledger/dto"
	ledgerin "mindmosaic/internal/modules/ledger/port/in"
	"mindmosaic/internal/platform/auth"
	apperrors "mindmosaic/internal/platform/errors"
)

const basePath = "/v1"

// HTTPConfig configures the document store server. A nil Verifier disables
// authentication.
type HTTPConfig struct {
	Verifier *auth.Verifier
	Logger   logrus.FieldLogger
}

type principalKey struct{}

type userPath struct {
	UserID string `path:"uid" minLength:"1"`
}

type snapshotResponse struct {
	Body dto.SnapshotOutput
}

type putSnapshotInput struct {
	UserID string `path:"uid" minLength:"1"`
	Body   dto.SnapshotOutput
}

type appendHistoryInput struct {
	UserID string `path:"uid" minLength:"1"`
	Body   dto.LogEntryOutput
}

type historyInput struct {
	UserID string `path:"uid" minLength:"1"`
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"500"`
}

type historyResponse struct {
	Body struct {
		Entries []dto.LogEntryOutput `json:"entries"`
	}
}

// NewHTTPHandler serves users/{uid} ledger documents, their activity log
// and a websocket feed of snapshot changes.
func NewHTTPHandler(usecase ledgerin.Usecase, cfg HTTPConfig) http.Handler {
	router := chi.NewRouter()
	router.Use(requestLogger(cfg.Logger))
	router.Use(authMiddleware(cfg.Verifier))

	hcfg := huma.DefaultConfig("MindMosaic Ledger Store", "1.0.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	registerHealth(api)
	registerSnapshot(api, usecase)
	registerHistory(api, usecase)
	registerWatch(router, usecase, cfg.Logger)
	return router
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        basePath + "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string
	}, error) {
		return &struct {
			Body map[string]string
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerSnapshot(api huma.API, usecase ledgerin.Usecase) {
	huma.Register(api, huma.Operation{
		OperationID: "get-ledger",
		Method:      http.MethodGet,
		Path:        basePath + "/users/{uid}",
		Summary:     "Read a user's ledger snapshot",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *userPath) (*snapshotResponse, error) {
		if err := authorize(ctx, input.UserID); err != nil {
			return nil, err
		}
		out, err := usecase.Snapshot(ctx, input.UserID)
		if err != nil {
			return nil, statusError(err)
		}
		return &snapshotResponse{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-ledger",
		Method:      http.MethodPut,
		Path:        basePath + "/users/{uid}",
		Summary:     "Replace a user's ledger snapshot",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *putSnapshotInput) (*snapshotResponse, error) {
		if err := authorize(ctx, input.UserID); err != nil {
			return nil, err
		}
		out, err := usecase.Replace(ctx, input.UserID, input.Body)
		if err != nil {
			return nil, statusError(err)
		}
		return &snapshotResponse{Body: out}, nil
	})
}

func registerHistory(api huma.API, usecase ledgerin.Usecase) {
	huma.Register(api, huma.Operation{
		OperationID:   "append-activity-log",
		Method:        http.MethodPost,
		Path:          basePath + "/users/{uid}/activity-log",
		Summary:       "Append a completed activity",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *appendHistoryInput) (*struct{}, error) {
		if err := authorize(ctx, input.UserID); err != nil {
			return nil, err
		}
		if err := usecase.AppendHistory(ctx, input.UserID, input.Body); err != nil {
			return nil, statusError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-activity-log",
		Method:      http.MethodGet,
		Path:        basePath + "/users/{uid}/activity-log",
		Summary:     "List completed activities, newest first",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *historyInput) (*historyResponse, error) {
		if err := authorize(ctx, input.UserID); err != nil {
			return nil, err
		}
		entries, err := usecase.History(ctx, dto.HistoryInput{UserID: input.UserID, Limit: input.Limit})
		if err != nil {
			return nil, statusError(err)
		}
		resp := &historyResponse{}
		resp.Body.Entries = entries
		return resp, nil
	})
}

func registerWatch(router chi.Router, usecase ledgerin.Usecase, log logrus.FieldLogger) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	router.Get(basePath+"/users/{uid}/watch", func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "uid")
		if err := authorize(r.Context(), userID); err != nil {
			http.Error(w, err.Error(), err.GetStatus())
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		updates, err := usecase.Watch(ctx, userID)
		if err != nil {
			se := statusError(err)
			http.Error(w, se.Error(), se.GetStatus())
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Reading detects the peer closing the socket.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot, ok := <-updates:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(snapshot); err != nil {
					if log != nil {
						log.WithField("user_id", userID).WithError(err).Debug("watch write failed")
					}
					return
				}
			}
		}
	})
}

func authMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil || !strings.HasPrefix(r.URL.Path, basePath+"/users/") {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			principal, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authorize allows access when authentication is disabled or the token's
// subject owns the document.
func authorize(ctx context.Context, userID string) huma.StatusError {
	principal, ok := ctx.Value(principalKey{}).(auth.Principal)
	if !ok {
		return nil
	}
	if principal.UserID != userID {
		return huma.Error403Forbidden("token does not grant access to this user")
	}
	return nil
}

func statusError(err error) huma.StatusError {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, apperrors.ErrStoreWriteFailed):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.WithFields(logrus.Fields{
					"method":   r.Method,
					"path":     r.URL.Path,
					"duration": time.Since(start).String(),
				}).Info("request")
			}
		})
	}
}
