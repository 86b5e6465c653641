package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTokenFromHttpAuthHeader(t *testing.T) {
	tests := map[string]struct {
		header string
		token  string
		err    bool
	}{
		"Bearer":        {header: "Bearer abc.def.ghi", token: "abc.def.ghi"},
		"Missing":       {header: "", err: true},
		"EmptyBearer":   {header: "Bearer ", err: true},
		"WrongScheme":   {header: "Basic dXNlcjpwYXNz", err: true},
		"NoSchemeToken": {header: "abc.def.ghi", err: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
			request, err := http.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, err)
			if test.header != "" {
				request.Header.Set("Authorization", test.header)
			}
			ctx.Request = request

			token, err := GetTokenFromHttpAuthHeader(ctx)

			if test.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.token, token)
		})
	}
}
