package usecase

import (
	"errors"
	"net/http"

	"capability-gateway/internal/domain"
)

// Normalize は任意のアダプタ層エラーを閉じたエラー分類へ変換する。
// 生のトランスポートエラーやバックエンド固有のエラーがそのまま呼び出し側へ
// 渡ることはない。診断用のメッセージは保持される。
func Normalize(err error) *domain.GatewayError {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}

	var statusErr *domain.BackendError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusUnauthorized:
			return domain.WrapError(domain.ErrAuthentication, err,
				"backend rejected credentials (status %d): %s", statusErr.Status, statusErr.Body)
		case http.StatusForbidden:
			return domain.WrapError(domain.ErrAuthorization, err,
				"backend denied the operation (status %d): %s", statusErr.Status, statusErr.Body)
		case http.StatusNotFound:
			return domain.WrapError(domain.ErrNotFound, err,
				"resource not found (status %d): %s", statusErr.Status, statusErr.Body)
		default:
			return domain.WrapError(domain.ErrBackendUnavailable, err,
				"backend returned status %d: %s", statusErr.Status, statusErr.Body)
		}
	}

	return domain.WrapError(domain.ErrBackendUnavailable, err, "%v", err)
}
