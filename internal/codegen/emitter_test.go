package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/docbind/pkg/rest"
	"github.com/yourorg/docbind/pkg/types"
)

func sampleSections() []types.Section {
	return []types.Section{
		{
			Name:        "Account",
			Description: []string{"Account endpoints."},
			Endpoints: []types.Endpoint{
				{
					Name:               "Get balance",
					Description:        []string{"Retrieve trading account balances.", "Rate Limit: 10 requests per 2 seconds"},
					Method:             "GET",
					Path:               "/api/v5/account/balance",
					RequestExampleText: "GET /api/v5/account/balance?ccy=BTC",
					RequestParams: []types.Param{
						{Name: "ccy", Type: "String", Required: "No", Description: "Currency"},
					},
					ResponseParams: []types.Param{
						{Name: "totalEq", Type: "String"},
						{Name: "details", Type: "Array of objects", Children: []types.Param{{Name: "eq", Type: "String"}}},
					},
					ResponseExampleValue: map[string]any{
						"code": "0",
						"msg":  "",
						"data": []any{map[string]any{"totalEq": "1"}},
					},
				},
				{
					Name:               "Set leverage",
					Method:             "POST",
					Path:               "/api/v5/account/set-leverage",
					RequestExampleText: "POST /api/v5/account/set-leverage\nbody\n{\n    \"lever\": \"5\"\n}",
					RequestParams:      []types.Param{{Name: "lever", Type: "String", Required: "Yes"}},
					ResponseExampleValue: map[string]any{
						"code": "0",
						"data": []any{},
					},
				},
			},
		},
		{
			Name: "Trade",
			Endpoints: []types.Endpoint{
				{
					Name:               "Place multiple orders",
					Method:             "POST",
					Path:               "/api/v5/trade/batch-orders",
					RequestExampleText: "POST /api/v5/trade/batch-orders\nbody\n[\n    {\"instId\": \"BTC-USDT\"}\n]",
					RequestParams:      []types.Param{{Name: "instId", Type: "String", Required: "Yes"}},
					ResponseParams:     []types.Param{{Name: "ordId", Type: "String"}},
				},
			},
		},
		{
			Name: "Public data",
			Endpoints: []types.Endpoint{
				{
					Name:               "Get system time",
					Method:             "GET",
					Path:               "/api/v5/public/time",
					RequestExampleText: "GET /api/v5/public/time",
				},
			},
		},
	}
}

func TestEmitBindings(t *testing.T) {
	e := NewEmitter(Options{}, zerolog.Nop())

	out, err := e.Emit(sampleSections())
	require.NoError(t, err)
	src := string(out.Source)

	assert.True(t, strings.HasPrefix(src, generatedHeader))
	assert.Contains(t, src, "package okxapi")
	assert.Contains(t, src, `"github.com/yourorg/docbind/pkg/rest"`)

	assert.Contains(t, src, "func AccountGetBalance(ctx context.Context, c rest.Sender, params AccountGetBalanceRequest) ([]AccountGetBalanceResponse, error) {")
	assert.Contains(t, src, "func AccountSetLeverage(ctx context.Context, c rest.Sender, params AccountSetLeverageRequest) ([]any, error) {")
	assert.Contains(t, src, "func TradePlaceMultipleOrders(ctx context.Context, c rest.Sender, params []TradePlaceMultipleOrdersRequest) (TradePlaceMultipleOrdersResponse, error) {")
	assert.Contains(t, src, "func PublicDataGetSystemTime(ctx context.Context, c rest.Sender) (any, error) {")

	assert.Len(t, regexp.MustCompile(`ParamsLocation:\s+rest\.InBody`).FindAllString(src, -1), 2)
	assert.Len(t, regexp.MustCompile(`ParamsLocation:\s+rest\.InQuery`).FindAllString(src, -1), 2)
	assert.Regexp(t, `Path:\s+"/api/v5/account/balance"`, src)

	assert.Contains(t, src, "//\tGET /api/v5/account/balance?ccy=BTC")
	assert.Contains(t, src, `"totalEq": "1"`)
	assert.Contains(t, src, "//\tnone")
	assert.Contains(t, src, "Retrieve trading account balances.")
	assert.Regexp(t, "Ccy\\s+string\\s+`json:\"ccy,omitempty\"`", src)
	assert.Regexp(t, "Lever\\s+string\\s+`json:\"lever\"`", src)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, DefaultFilename, out.Source, parser.ParseComments)
	require.NoError(t, err)

	funcs := 0
	for _, decl := range file.Decls {
		if _, ok := decl.(*ast.FuncDecl); ok {
			funcs++
		}
	}
	assert.Equal(t, types.CountEndpoints(sampleSections()), funcs)
	assert.Len(t, out.Bindings, funcs)
}

func TestEmitBindingPlan(t *testing.T) {
	bindings, err := NewEmitter(Options{}, zerolog.Nop()).Plan(sampleSections())
	require.NoError(t, err)
	require.Len(t, bindings, 4)

	balance := bindings[0]
	assert.Equal(t, "accountGetBalance", balance.Ident)
	assert.Equal(t, "AccountGetBalanceRequest", balance.RequestType)
	assert.Equal(t, "AccountGetBalanceResponse", balance.ResponseType)
	assert.Equal(t, rest.InQuery, balance.Location)
	assert.False(t, balance.RequestIsArray)
	assert.True(t, balance.ResponseIsArray)

	leverage := bindings[1]
	assert.Equal(t, rest.InBody, leverage.Location)
	assert.Empty(t, leverage.ResponseType)
	assert.True(t, leverage.ResponseIsArray)
	assert.Equal(t, "[]", leverage.ResponseExample)

	batch := bindings[2]
	assert.True(t, batch.RequestIsArray)
	assert.False(t, batch.ResponseIsArray)
	assert.Equal(t, noneExample, batch.ResponseExample)

	clock := bindings[3]
	assert.Empty(t, clock.RequestType)
	assert.Empty(t, clock.ResponseType)
	assert.Equal(t, rest.InQuery, clock.Location)
}

func TestEmitIsDeterministic(t *testing.T) {
	e := NewEmitter(Options{}, zerolog.Nop())

	first, err := e.Emit(sampleSections())
	require.NoError(t, err)
	second, err := e.Emit(sampleSections())
	require.NoError(t, err)

	assert.Equal(t, first.Source, second.Source)
}

func TestEmitEmptyTree(t *testing.T) {
	out, err := NewEmitter(Options{Package: "empty"}, zerolog.Nop()).Emit(nil)
	require.NoError(t, err)

	src := string(out.Source)
	assert.Contains(t, src, "package empty")
	assert.NotContains(t, src, "import")
	assert.Empty(t, out.Bindings)
}

func TestEmitAliasesRestImport(t *testing.T) {
	out, err := NewEmitter(Options{RestImport: "example.com/client/transport"}, zerolog.Nop()).Emit(sampleSections())
	require.NoError(t, err)
	assert.Contains(t, string(out.Source), `rest "example.com/client/transport"`)
}

func TestEmitRejectsInvalidPackage(t *testing.T) {
	_, err := NewEmitter(Options{Package: "my-client"}, zerolog.Nop()).Emit(sampleSections())
	assert.ErrorIs(t, err, ErrInvalidPackage)
}

func TestEmitIdentifierCollisions(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []types.Endpoint
	}{
		{
			name: "same function name",
			endpoints: []types.Endpoint{
				{Name: "Get balance"},
				{Name: "get-balance"},
			},
		},
		{
			name: "function shadows request type",
			endpoints: []types.Endpoint{
				{Name: "Get balance", RequestParams: []types.Param{{Name: "ccy"}}},
				{Name: "Get balance request"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := []types.Section{{Name: "Account", Endpoints: tt.endpoints}}
			_, err := NewEmitter(Options{}, zerolog.Nop()).Emit(sections)
			assert.ErrorIs(t, err, ErrIdentifierCollision)
		})
	}
}

func TestEmitRejectsEmptyIdentifier(t *testing.T) {
	sections := []types.Section{{Name: "--", Endpoints: []types.Endpoint{{Name: "?"}}}}
	_, err := NewEmitter(Options{}, zerolog.Nop()).Emit(sections)
	assert.ErrorIs(t, err, ErrEmptyIdentifier)
}

func TestParamsLocation(t *testing.T) {
	assert.Equal(t, rest.InBody, paramsLocation("POST /x\nbody\n{}"))
	assert.Equal(t, rest.InQuery, paramsLocation("POST /x\nBody\n{}"))
	assert.Equal(t, rest.InQuery, paramsLocation(""))
}

func TestResponsePayload(t *testing.T) {
	assert.Equal(t, []any{1}, responsePayload(map[string]any{"data": []any{1}}))
	bare := map[string]any{"ts": "1"}
	assert.Equal(t, bare, responsePayload(bare))
	assert.Nil(t, responsePayload(nil))
}
