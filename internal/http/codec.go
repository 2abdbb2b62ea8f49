package httpapp

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alphabot-ai/gamerev/internal/apierror"
)

const maxBodyBytes = 1 << 20

// RequireJSONStage rejects requests whose Accept header excludes JSON and
// state-changing requests whose Content-Type is not JSON.
func RequireJSONStage(docsRoot string) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsJSON(r.Header.Values("Accept")) {
				writeProblem(w, docsRoot, apierror.New(apierror.KindNotAcceptable,
					"Not acceptable", "This API only supports responses encoded as JSON."))
				return
			}
			if hasBodySemantics(r.Method) && !isJSONContentType(r.Header.Get("Content-Type")) {
				writeProblem(w, docsRoot, apierror.New(apierror.KindUnsupportedMediaType,
					"Unsupported media type", "This API only supports requests encoded as JSON."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// JSONTranslatorStage decodes the request body into the exchange before the
// router runs and encodes the exchange's result or error afterwards. A
// request with no body is passed through undecoded; a handler that sets no
// result gets no response body.
func JSONTranslatorStage(docsRoot string) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ex := &Exchange{}
			if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
				doc, err := readDocument(w, r)
				if err != nil {
					writeProblem(w, docsRoot, err)
					return
				}
				ex.Doc = doc
			}

			next.ServeHTTP(w, r.WithContext(withExchange(r.Context(), ex)))

			if ex.Err != nil {
				writeProblem(w, docsRoot, ex.Err)
				return
			}
			if ex.Location != "" {
				w.Header().Set("Location", ex.Location)
			}
			status := ex.Status
			if status == 0 {
				status = http.StatusOK
			}
			if ex.Result == nil {
				w.WriteHeader(status)
				return
			}
			writeJSON(w, status, ex.Result)
		})
	}
}

func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apierror.Wrap(apierror.KindInvalidDocument, "Request body too large",
				"The request body may not exceed "+strconv.Itoa(maxBodyBytes)+" bytes.", err)
		}
		return nil, apierror.Wrap(apierror.KindMalformedJSON, "Malformed JSON",
			"Could not read the request body.", err)
	}
	if len(body) == 0 {
		return nil, apierror.New(apierror.KindEmptyBody, "Empty request body",
			"A valid JSON document is required.")
	}
	if !utf8.Valid(body) || !json.Valid(body) {
		return nil, apierror.New(apierror.KindMalformedJSON, "Malformed JSON",
			"Could not decode the request body. The JSON was incorrect or not encoded as UTF-8.")
	}
	return body, nil
}

func hasBodySemantics(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}

func isJSONContentType(v string) bool {
	if v == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(v)
	return err == nil && mt == "application/json"
}

// acceptsJSON reports whether the Accept header values admit
// application/json with a non-zero quality. The most specific matching range
// decides. An absent or blank header accepts anything.
func acceptsJSON(values []string) bool {
	seen := false
	bestSpecificity, bestQ := 0, 0.0
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			seen = true
			mt, params, err := mime.ParseMediaType(part)
			if err != nil {
				continue
			}
			specificity := 0
			switch mt {
			case "application/json":
				specificity = 3
			case "application/*":
				specificity = 2
			case "*/*":
				specificity = 1
			default:
				continue
			}
			q := 1.0
			if raw, ok := params["q"]; ok {
				if q, err = strconv.ParseFloat(raw, 64); err != nil {
					continue
				}
			}
			if specificity > bestSpecificity || (specificity == bestSpecificity && q > bestQ) {
				bestSpecificity, bestQ = specificity, q
			}
		}
	}
	return !seen || bestQ > 0
}
