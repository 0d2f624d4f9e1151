package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vitrine/internal/cache"
)

func TestNormalizePostalCode(t *testing.T) {
	cep, err := NormalizePostalCode("01310-100")
	require.NoError(t, err)
	assert.Equal(t, "01310100", cep)

	for _, raw := range []string{"", "1234567", "0131010a", "013101000"} {
		_, err := NormalizePostalCode(raw)
		assert.ErrorIs(t, err, ErrInvalidPostalCode, raw)
	}
}

func TestCEPLookup(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/01310100/json/":
			_, _ = w.Write([]byte(`{"cep":"01310-100","logradouro":"Avenida Paulista","bairro":"Bela Vista","localidade":"São Paulo","uf":"SP","ibge":"3550308"}`))
		default:
			_, _ = w.Write([]byte(`{"erro": true}`))
		}
	}))
	defer srv.Close()

	svc := NewCEPService(srv.URL+"/", cache.New(time.Minute), nil)

	addr, err := svc.Lookup(context.Background(), "01310-100")
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.Equal(t, "Avenida Paulista", addr.Street)
	assert.Equal(t, "SP", addr.State)

	_, err = svc.Lookup(context.Background(), "01310100")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	missing, err := svc.Lookup(context.Background(), "99999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCEPLookupUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewCEPService(srv.URL, nil, nil)
	_, err := svc.Lookup(context.Background(), "01310100")
	assert.Error(t, err)
}

func TestViaCEPErrorFlag(t *testing.T) {
	assert.True(t, notFound(true))
	assert.True(t, notFound("true"))
	assert.False(t, notFound(nil))
	assert.False(t, notFound(false))
}
