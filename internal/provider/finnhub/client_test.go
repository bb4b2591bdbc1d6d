package finnhub_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"priceresolver/internal/httpx/httpxmock"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/finnhub"
	"priceresolver/internal/symbol"
)

func TestClient_Search(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller and HTTP client
	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)

	// Assert: the query and token are sent, results are classified
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v1/search", req.URL.Path)
			require.Equal(t, "VWCE", req.URL.Query().Get("q"))
			require.Equal(t, "key", req.URL.Query().Get("token"))
			return &http.Response{
				StatusCode: http.StatusOK,
				Body: io.NopCloser(strings.NewReader(`{"count":3,"result":[
					{"symbol":"VWCE.DE","displaySymbol":"VWCE.DE","type":"ETP"},
					{"symbol":"VWCE.MI","displaySymbol":"VWCE.MI","type":"Common Stock"},
					{"displaySymbol":"broken"}
				]}`)),
			}, nil
		}).
		Times(1)

	client := finnhub.NewClient("key", finnhub.WithBaseURL("https://finnhub.test/api/v1/"), finnhub.WithHTTPClient(httpClient))

	// Act
	cands, err := client.Search(t.Context(), "VWCE")

	// Assert
	require.NoError(t, err)
	require.Equal(t, []symbol.Candidate{
		{Symbol: "VWCE.DE", DisplaySymbol: "VWCE.DE", Fund: true},
		{Symbol: "VWCE.MI", DisplaySymbol: "VWCE.MI"},
		{DisplaySymbol: "broken"},
	}, cands)
}

func TestClient_QuoteMissingField(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(&http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"error":"no data"}`))}, nil)

	_, err := finnhub.NewClient("key", finnhub.WithHTTPClient(httpClient)).Quote(t.Context(), "ZZZZ")
	require.ErrorIs(t, err, provider.ErrNotFound)
}
