package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/api/middleware"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.InvalidArgumentf("invalid request body")
	}
	return nil
}

// decodeOptionalJSON 空 body 視為零值
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.InvalidArgumentf("invalid request body")
	}
	return nil
}

// requirePrincipal 路由已掛 AuthMiddleware, 這裡是保險
func requirePrincipal(w http.ResponseWriter, r *http.Request) (service.Principal, bool) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		response.UnauthenticatedJSON(w, "unauthenticated")
		return service.Principal{}, false
	}
	return principal, true
}

func uintParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.InvalidArgumentf("invalid %s %q", name, raw)
	}
	return uint(id), nil
}
