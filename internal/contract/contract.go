// Package contract holds the OpenAPI document of the campus backend and
// checks the client's endpoint table and response bodies against it.
package contract

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/platform"
)

// DocumentPath is where servers publish the document.
const DocumentPath = "/openapi.yaml"

// AccessTokenScheme names the security scheme for access-token bearer auth.
const AccessTokenScheme = "accessToken"

//go:embed openapi.yaml
var document []byte

// Document returns the embedded OpenAPI document.
func Document() []byte {
	return document
}

// Finding codes.
const (
	FindingMissingPath      = "MISSING_API_PATH"
	FindingMissingMethod    = "MISSING_API_METHOD"
	FindingSecurityMismatch = "SECURITY_MISMATCH"
)

// Finding is a disagreement between the client and the contract.
type Finding struct {
	Code    string `json:"code" yaml:"code"`
	Method  string `json:"method" yaml:"method"`
	Path    string `json:"path" yaml:"path"`
	Message string `json:"message" yaml:"message"`
}

// Operation summarizes one documented operation.
type Operation struct {
	Method    string `json:"method" yaml:"method"`
	Path      string `json:"path" yaml:"path"`
	ID        string `json:"operation_id" yaml:"operation_id"`
	Anonymous bool   `json:"anonymous" yaml:"anonymous"`
}

// Contract is a loaded and validated OpenAPI document.
type Contract struct {
	doc *openapi3.T
}

// Load parses the embedded document.
func Load(ctx context.Context) (*Contract, error) {
	return Parse(ctx, document)
}

// Parse loads and validates an OpenAPI document.
func Parse(ctx context.Context, data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeContractViolation, "failed to load OpenAPI document", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeContractViolation, "invalid OpenAPI document", err)
	}
	return &Contract{doc: doc}, nil
}

// Fetch downloads a published document from baseURL.
func Fetch(ctx context.Context, client *http.Client, baseURL string) (*Contract, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(baseURL, "/") + DocumentPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid API URL", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeContractViolation,
			fmt.Sprintf("fetching %s: status %d", url, resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	return Parse(ctx, data)
}

// Version returns info.version of the document.
func (c *Contract) Version() string {
	if c.doc.Info == nil {
		return ""
	}
	return c.doc.Info.Version
}

// Operations lists every documented operation sorted by path then method.
func (c *Contract) Operations() []Operation {
	var ops []Operation
	for path, item := range c.doc.Paths.Map() {
		for method, op := range item.Operations() {
			ops = append(ops, Operation{
				Method:    method,
				Path:      path,
				ID:        op.OperationID,
				Anonymous: !c.requiresAccessToken(op),
			})
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops
}

// Check reports every endpoint that is undocumented or whose access-token
// requirement disagrees with the document.
func (c *Contract) Check(endpoints []platform.Endpoint) []Finding {
	var findings []Finding
	for _, ep := range endpoints {
		method := strings.ToUpper(ep.Method)

		op, code := c.lookup(method, ep.Path)
		switch code {
		case FindingMissingPath:
			findings = append(findings, Finding{
				Code: code, Method: method, Path: ep.Path,
				Message: fmt.Sprintf("API path not found in contract: %s %s", method, ep.Path),
			})
			continue
		case FindingMissingMethod:
			findings = append(findings, Finding{
				Code: code, Method: method, Path: ep.Path,
				Message: fmt.Sprintf("API method not found in contract: %s %s", method, ep.Path),
			})
			continue
		}

		if required := c.requiresAccessToken(op); required == ep.Anonymous {
			want := "anonymous"
			if required {
				want = "an access token"
			}
			findings = append(findings, Finding{
				Code: FindingSecurityMismatch, Method: method, Path: ep.Path,
				Message: fmt.Sprintf("contract expects %s for %s %s", want, method, ep.Path),
			})
		}
	}
	return findings
}

// ValidateResponse checks a JSON response body against the schema
// documented for method, path and status.
func (c *Contract) ValidateResponse(method, path string, status int, body []byte) error {
	method = strings.ToUpper(method)
	op, code := c.lookup(method, path)
	if code != "" {
		return errors.New(errors.ErrCodeContractViolation, fmt.Sprintf("undocumented operation %s %s", method, path))
	}

	ref := op.Responses.Status(status)
	if ref == nil {
		ref = op.Responses.Default()
	}
	if ref == nil || ref.Value == nil {
		return errors.New(errors.ErrCodeContractViolation,
			fmt.Sprintf("undocumented status %d for %s %s", status, method, path))
	}

	media := ref.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return errors.Wrap(errors.ErrCodeContractViolation, "response is not JSON", err)
	}
	if err := media.Schema.Value.VisitJSON(value); err != nil {
		return errors.Wrap(errors.ErrCodeContractViolation,
			fmt.Sprintf("response for %s %s (%d) violates the contract", method, path, status), err)
	}
	return nil
}

func (c *Contract) lookup(method, path string) (*openapi3.Operation, string) {
	if c.doc.Paths == nil {
		return nil, FindingMissingPath
	}
	item := c.doc.Paths.Find(path)
	if item == nil {
		return nil, FindingMissingPath
	}
	op := item.GetOperation(method)
	if op == nil {
		return nil, FindingMissingMethod
	}
	return op, ""
}

// requiresAccessToken reports whether op demands the access-token scheme,
// either directly or through the document default.
func (c *Contract) requiresAccessToken(op *openapi3.Operation) bool {
	reqs := c.doc.Security
	if op.Security != nil {
		reqs = *op.Security
	}
	for _, req := range reqs {
		if _, ok := req[AccessTokenScheme]; ok {
			return true
		}
	}
	return false
}
