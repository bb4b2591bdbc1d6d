package openfigi_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"priceresolver/internal/httpx/httpxmock"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/openfigi"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestMapISIN(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller and HTTP client
	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)

	// Assert: one POST carrying the ISIN job and the API key
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, "http://figi.test/v3/mapping", req.URL.String())
			require.Equal(t, "figi-key", req.Header.Get("X-OPENFIGI-APIKEY"))
			require.Equal(t, "application/json", req.Header.Get("Content-Type"))

			b, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.JSONEq(t, `[{"idType":"ID_ISIN","idValue":"US0378331005"}]`, string(b))

			return jsonResponse(http.StatusOK, `[{"data":[{"figi":"BBG000B9XRY4","ticker":"AAPL","exchCode":"US"},{"ticker":"APC"}]}]`), nil
		}).
		Times(1)

	client := openfigi.NewClient(
		openfigi.WithBaseURL("http://figi.test/"),
		openfigi.WithAPIKey("figi-key"),
		openfigi.WithHTTPClient(httpClient),
	)

	// Act
	ticker, err := client.MapISIN(t.Context(), "US0378331005")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "AAPL", ticker)
}

func TestMapISIN_NoAPIKeyHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Empty(t, req.Header.Get("X-OPENFIGI-APIKEY"))
			return jsonResponse(http.StatusOK, `[{"data":[{"ticker":"SAP"}]}]`), nil
		})

	ticker, err := openfigi.NewClient(openfigi.WithHTTPClient(httpClient)).MapISIN(t.Context(), "DE0007164600")
	require.NoError(t, err)
	require.Equal(t, "SAP", ticker)
}

func TestMapISIN_NotFound(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"warning":     `[{"warning":"No identifier found."}]`,
		"empty data":  `[{"data":[]}]`,
		"no ticker":   `[{"data":[{"figi":"BBG000"}]}]`,
		"empty array": `[]`,
		"wrong shape": `{"data":[{"ticker":"AAPL"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := httpxmock.NewMockHTTPClient(ctrl)
			httpClient.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusOK, body), nil)

			_, err := openfigi.NewClient(openfigi.WithHTTPClient(httpClient)).MapISIN(t.Context(), "XS0000000000")
			require.ErrorIs(t, err, provider.ErrNotFound)
		})
	}
}

func TestMapISIN_StatusError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusUnauthorized, `{"error":"bad key"}`), nil).Times(1)

	_, err := openfigi.NewClient(openfigi.WithHTTPClient(httpClient)).MapISIN(t.Context(), "US0378331005")
	require.Error(t, err)
	require.NotErrorIs(t, err, provider.ErrNotFound)
}
