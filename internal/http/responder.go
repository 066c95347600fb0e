package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/fieldservice-scheduler/internal/application"
	"github.com/example/fieldservice-scheduler/internal/scheduler"
)

var (
	errBadRequestBody       = errors.New("無効なリクエスト形式です。")
	errInvalidAppointmentID = errors.New("無効なアポイントメント ID です。")
	errInvalidJobID         = errors.New("無効なジョブ ID です。")
	errInvalidTechnicianID  = errors.New("無効な技術者 ID です。")
	errMissingSessionToken  = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "メールアドレスまたはパスワードが正しくありません",
		})
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_ACCOUNT_DISABLED",
			Message:   "このアカウントは無効化されています。",
		})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "セッションが無効です。再度ログインしてください。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "リソースは既に存在します。"})
	case errors.Is(err, application.ErrConcurrentCommit):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CONCURRENT_COMMIT",
			Message:   "別の確定処理が進行中です。しばらくしてから再試行してください。",
		})
	default:
		r.handleTypedServiceError(ctx, w, err)
	}
}

func (r responder) handleTypedServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "入力内容に誤りがあります。",
			Errors:  localizeValidationErrors(vErr),
		})
		return
	}

	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SCHEDULE_CONFLICT",
			Message:   "指定された時間帯は既存の予定と競合しています。",
			Conflicts: toConflictDTOs(cErr.Conflicts),
		})
		return
	}

	var xErr *application.ExternalError
	if errors.As(err, &xErr) {
		if xErr.Timeout {
			r.writeJSON(ctx, w, http.StatusGatewayTimeout, errorResponse{
				ErrorCode: "CALENDAR_TIMEOUT",
				Message:   "カレンダーサービスが応答しませんでした。時間をおいて再試行してください。",
			})
			return
		}
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{
			ErrorCode: "CALENDAR_REJECTED",
			Message:   "カレンダーサービスがリクエストを拒否しました。",
		})
		return
	}

	var sErr *application.SplitIncompleteError
	if errors.As(err, &sErr) {
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode:  "SPLIT_INCOMPLETE",
			Message:    "分割予定の一部しか登録できませんでした。残りを確認してください。",
			CreatedIDs: sErr.Created,
		})
		return
	}

	r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
	r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "email is required":
		return "メールアドレスは必須です。"
	case "must be a valid email address":
		return "メールアドレスの形式が不正です。"
	case "full name is required":
		return "氏名は必須です。"
	case "must be a valid URL":
		return "有効な URL を指定してください。"
	case "customer name is required":
		return "顧客名は必須です。"
	case "customer email is required":
		return "顧客のメールアドレスは必須です。"
	case "summary is required":
		return "作業概要は必須です。"
	case "date is required":
		return "日付は必須です。"
	case "technician is not active":
		return "指定された技術者は稼働していません。"
	case "start must be before end":
		return "終了時刻は開始時刻より後である必要があります。"
	case "technician email is required to send an invite":
		return "招待を送信するには技術者のメールアドレスが必要です。"
	case "customer email is required to send an invite":
		return "招待を送信するには顧客のメールアドレスが必要です。"
	case "appointment has no calendar event":
		return "このアポイントメントにはカレンダーイベントがありません。"
	case "cancelled appointments cannot be reset":
		return "キャンセル済みのアポイントメントはリセットできません。"
	case "only draft appointments can be moved; reset the appointment first":
		return "移動できるのは下書き状態のアポイントメントのみです。先にリセットしてください。"
	case "related records are missing":
		return "関連するレコードが存在しません。"
	default:
		if strings.HasPrefix(message, "only draft appointments can be committed") {
			return "確定できるのは下書き状態のアポイントメントのみです。"
		}
		if strings.HasPrefix(message, "customer invite requires") {
			return "顧客招待は技術者の承諾待ちまたは承諾済みの状態でのみ送信できます。"
		}
		if strings.HasPrefix(message, "manual confirmation requires") {
			return "手動確定は技術者承諾済みまたは顧客確認待ちの状態でのみ実行できます。"
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode  string            `json:"error_code,omitempty"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"`
	Conflicts  []conflictDTO     `json:"conflicts,omitempty"`
	CreatedIDs []string          `json:"created_ids,omitempty"`
}

type conflictDTO struct {
	Kind          string `json:"kind"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Description   string `json:"description,omitempty"`
	Start         string `json:"start"`
	End           string `json:"end"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]conflictDTO, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, conflictDTO{
			Kind:          string(conflict.Kind),
			AppointmentID: conflict.AppointmentID,
			Description:   conflict.Description,
			Start:         conflict.Start.String(),
			End:           conflict.End.String(),
		})
	}
	return out
}
