package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/propdesk/propdesk/internal/client"
	"github.com/propdesk/propdesk/internal/constants"
	apperrors "github.com/propdesk/propdesk/internal/errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var apiCmd = &cobra.Command{
	Use:   "api <path>...",
	Short: "Make authenticated requests to the API",
	Long: `Send authenticated requests and print the responses. Relative paths are
placed under the API prefix. Several paths are requested concurrently; an
expired token is refreshed once for all of them.`,
	Example: `  propdesk api /auth/me
  propdesk api notifications notifications/unread-count
  propdesk api -X PATCH /notifications/ntf-1/read`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().StringP("method", "X", http.MethodGet, "HTTP method")
	apiCmd.Flags().StringP("data", "d", "", "JSON request body (single path only)")
	apiCmd.Flags().StringArrayP("header", "H", nil, "Extra request header as 'Name: value'")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	method, _ := cmd.Flags().GetString("method")
	data, _ := cmd.Flags().GetString("data")
	headers, _ := cmd.Flags().GetStringArray("header")

	service := NewAPIService(rt.Client, NewOutputWrapper())
	return service.Call(cmd.Context(), APICall{Method: method, Paths: args, Data: data, Headers: headers})
}

// APICall describes one invocation of the api command
type APICall struct {
	Method  string
	Paths   []string
	Data    string
	Headers []string
}

// APIService sends raw authenticated requests
type APIService struct {
	client client.Interface
	output OutputInterface
}

// NewAPIService creates a new APIService with the provided dependencies
func NewAPIService(apiClient client.Interface, outputter OutputInterface) *APIService {
	return &APIService{client: apiClient, output: outputter}
}

type apiResult struct {
	resp *client.Response
	err  error
}

// Call sends the request to every path concurrently and prints the responses
// in argument order. Every path is attempted; an error is returned if any failed.
func (s *APIService) Call(ctx context.Context, call APICall) error {
	req, err := s.buildRequest(call)
	if err != nil {
		return err
	}

	results := make([]apiResult, len(call.Paths))
	var g errgroup.Group
	g.SetLimit(constants.CLIMaxConcurrentRequests)
	for i, path := range call.Paths {
		r := req
		r.Path = path
		r.Headers = req.Headers.Clone()
		g.Go(func() error {
			resp, err := s.client.Do(ctx, r)
			results[i] = apiResult{resp: resp, err: err}
			return err
		})
	}
	groupErr := g.Wait()

	for i, path := range call.Paths {
		if len(call.Paths) > 1 {
			s.output.Infof("%s %s", s.output.Bold(req.Method), path)
		}
		s.print(results[i])
	}
	if groupErr != nil {
		return fmt.Errorf("%d of %d request(s) failed", countFailed(results), len(results))
	}
	return nil
}

func (s *APIService) buildRequest(call APICall) (client.Request, error) {
	req := client.Request{Method: strings.ToUpper(strings.TrimSpace(call.Method))}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	if call.Data != "" {
		if len(call.Paths) > 1 {
			return req, errors.New("--data can only be used with a single path")
		}
		if !json.Valid([]byte(call.Data)) {
			return req, errors.New("--data must be valid JSON")
		}
		req.Body = json.RawMessage(call.Data)
	}

	for _, h := range call.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return req, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		req.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return req, nil
}

func (s *APIService) print(res apiResult) {
	if res.err != nil {
		var appErr *apperrors.AppError
		if errors.As(res.err, &appErr) && appErr.StatusCode != 0 {
			s.output.Errorf("%s", appErr.Message)
			if len(appErr.Body) > 0 {
				s.output.Println(prettyJSON(appErr.Body))
			}
			return
		}
		s.output.Errorf("%v", res.err)
		return
	}

	s.output.Successf("%d %s", res.resp.StatusCode, http.StatusText(res.resp.StatusCode))
	if len(res.resp.Body) > 0 {
		s.output.Println(prettyJSON(res.resp.Body))
	}
}

// prettyJSON indents body when it is JSON and returns it verbatim otherwise.
func prettyJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

func countFailed(results []apiResult) int {
	n := 0
	for _, r := range results {
		if r.err != nil {
			n++
		}
	}
	return n
}
