package tools

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/deanmachines/foundry/tool"
	"github.com/tidwall/gjson"
)

// ticker symbols: 1-5 capital letters, optional class/exchange suffix
var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}([.-][A-Z]{1,2})?$`)

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// Stock fetches market quotes over HTTP.
type Stock struct {
	Client  *http.Client
	BaseURL string
}

func NewStock() *Stock {
	return &Stock{
		Client:  defaultHTTPClient(),
		BaseURL: "https://query1.finance.yahoo.com/v8/finance/chart",
	}
}

// Definition exposes the quote lookup as a model-callable tool.
func (s *Stock) Definition() tool.Definition {
	return tool.Must(
		s.Quote,
		tool.Name("stock_price"),
		tool.Description("Look up the current market price for a stock ticker symbol, e.g. AAPL or BRK.B."),
		tool.Parameters("symbol"),
	)
}

// Quote returns the latest price for the symbol. Symbols that do not
// match the ticker format are rejected without a network call.
func (s *Stock) Quote(symbol string) string {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Sprintf("invalid symbol %q: expected a ticker like AAPL or BRK.B", symbol)
	}

	resp, err := s.Client.Get(s.BaseURL + "/" + url.PathEscape(symbol))
	if err != nil {
		return fmt.Sprintf("quote lookup for %s failed: %v", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("quote lookup for %s failed: status %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("quote lookup for %s failed: %v", symbol, err)
	}

	meta := gjson.GetBytes(body, "chart.result.0.meta")
	price := meta.Get("regularMarketPrice")
	if !price.Exists() {
		return fmt.Sprintf("no quote found for %s", symbol)
	}
	currency := meta.Get("currency").String()
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s: %s %s", symbol, price.String(), currency)
}
