package util

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPreservesDependencyCodes(t *testing.T) {
	cases := []struct {
		err        error
		wantCode   string
		wantStatus int
	}{
		{NewDependencyUnavailable("reasoning service", errors.New("breaker open")), "DEPENDENCY_UNAVAILABLE", http.StatusServiceUnavailable},
		{NewDependencyFailure("reasoning service", errors.New("quota exceeded")), "DEPENDENCY_FAILURE", http.StatusBadGateway},
		{NewMalformedResponse("reasoning service", errors.New("not json")), "MALFORMED_RESPONSE", http.StatusBadGateway},
	}
	for _, tc := range cases {
		de := ToDomainError(tc.err)
		require.Equal(t, tc.wantCode, de.Code)
		require.Equal(t, tc.wantStatus, de.HTTPStatus)
		require.NotNil(t, de.Err)
	}
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	de := ToDomainError(pgx.ErrNoRows)
	require.Equal(t, "NOT_FOUND", de.Code)
	require.Equal(t, http.StatusNotFound, de.HTTPStatus)
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	require.Equal(t, "INTERNAL_ERROR", de.Code)
	require.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
}
