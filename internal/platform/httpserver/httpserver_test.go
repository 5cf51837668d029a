package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"customers/internal/platform/config"
)

func TestNew(t *testing.T) {
	h := http.NewServeMux()
	srv := New(config.ServerConfig{Addr: ":18080", ReadHeaderTimeout: 2 * time.Second}, h)

	assert.Equal(t, ":18080", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.ReadHeaderTimeout)
	assert.Same(t, h, srv.Handler)
}
