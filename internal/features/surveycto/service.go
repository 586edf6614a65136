package surveycto

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"surveysync/internal/features/schema"
	"surveysync/internal/features/session"

	"go.uber.org/zap"
)

const userAgent = "SurveySync Connect"

var cooldownPattern = regexp.MustCompile(`(?i)wait\s+for\s+(\d+)\s+seconds`)

type SurveyCTOService interface {
	ListForms(ctx context.Context, creds session.Credentials) ([]Form, error)
	FetchSubmissions(ctx context.Context, creds session.Credentials, formID string, since time.Time) ([]Record, error)
	FormFields(ctx context.Context, creds session.Credentials, formID string) ([]schema.FieldDefinition, error)
}

type SurveyCTOServiceImpl struct {
	Client *http.Client
	Logger *zap.Logger
}

func NewSurveyCTOService(logger *zap.Logger) SurveyCTOService {
	return &SurveyCTOServiceImpl{
		Client: &http.Client{Timeout: 60 * time.Second},
		Logger: logger,
	}
}

// ListForms prefers the OpenRosa /formList endpoint (the only one carrying
// titles) and falls back to /api/v2/forms/ids when that fails or parses empty.
func (s *SurveyCTOServiceImpl) ListForms(ctx context.Context, creds session.Credentials) ([]Form, error) {
	forms, err := s.fetchFormList(ctx, creds)
	if err == nil && len(forms) > 0 {
		return forms, nil
	}
	if err != nil {
		switch err.(type) {
		case *ParseError, *ApiError:
			s.Logger.Debug("formList failed, falling back to forms/ids", zap.Error(err))
		default:
			return nil, err
		}
	}

	ids, err := s.fetchFormIDs(ctx, creds)
	if err != nil {
		return nil, err
	}

	forms = make([]Form, 0, len(ids))
	for _, id := range ids {
		forms = append(forms, Form{FormID: id, Title: id})
	}
	return forms, nil
}

// FetchSubmissions pulls wide-JSON submissions for a form, optionally limited
// to those after the since watermark. SurveyCTO enforces a quiet period on
// full pulls; 412/417/429 answers become a CooldownError.
func (s *SurveyCTOServiceImpl) FetchSubmissions(ctx context.Context, creds session.Credentials, formID string, since time.Time) ([]Record, error) {
	var date int64
	if !since.IsZero() {
		date = since.UTC().Unix()
	}
	url := fmt.Sprintf("%s/api/v2/forms/data/wide/json/%s?date=%d", creds.ServerURL, formID, date)

	resp, body, err := s.get(ctx, creds, url, "application/json")
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == 412 || resp.StatusCode == 417 || resp.StatusCode == 429:
		return nil, &CooldownError{
			StatusCode: resp.StatusCode,
			Seconds:    parseCooldownSeconds(body),
		}
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return nil, ErrAuthentication
	case resp.StatusCode == 404:
		return nil, &ApiError{
			StatusCode: 404,
			Message:    fmt.Sprintf("SurveyCTO form data endpoint not found for form %q", formID),
		}
	case resp.StatusCode >= 400:
		return nil, &ApiError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("SurveyCTO submissions request failed with status %d. snippet=%q", resp.StatusCode, snippet(body)),
		}
	}

	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "json") {
		return nil, &ParseError{
			Message: fmt.Sprintf("SurveyCTO submissions returned non-JSON. snippet=%q", snippet(body)),
		}
	}

	var payload []map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{
			Message: fmt.Sprintf("SurveyCTO submissions returned invalid JSON. snippet=%q", snippet(body)),
		}
	}

	records := make([]Record, 0, len(payload))
	for _, row := range payload {
		records = append(records, Record(row))
	}
	return records, nil
}

// FormFields infers the form's field list from its submissions. SurveyCTO's
// wide JSON carries no type information, so every field is text except the
// well-known metadata timestamps; KEY is the submission key.
func (s *SurveyCTOServiceImpl) FormFields(ctx context.Context, creds session.Credentials, formID string) ([]schema.FieldDefinition, error) {
	records, err := s.FetchSubmissions(ctx, creds, formID, time.Time{})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	fields := []schema.FieldDefinition{}
	for _, record := range records {
		names := make([]string, 0, len(record))
		for name := range record {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			fields = append(fields, schema.FieldDefinition{
				Name:         name,
				Type:         inferFieldType(name),
				Label:        name,
				IsPrimaryKey: name == "KEY",
			})
		}
	}
	return fields, nil
}

func inferFieldType(name string) schema.FieldType {
	switch strings.ToLower(name) {
	case "submissiondate", "starttime", "endtime", "completiondate":
		return schema.FieldTypeDatetime
	default:
		return schema.FieldTypeText
	}
}

// openRosa formList XML shapes

type formListXML struct {
	XMLName xml.Name   `xml:"xforms"`
	XForms  []xformXML `xml:"xform"`
}

type xformXML struct {
	FormID  string `xml:"formID"`
	Name    string `xml:"name"`
	Version string `xml:"version"`
}

func (s *SurveyCTOServiceImpl) fetchFormList(ctx context.Context, creds session.Credentials) ([]Form, error) {
	resp, body, err := s.get(ctx, creds, creds.ServerURL+"/formList", "text/xml, application/xml")
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return nil, ErrAuthentication
	case resp.StatusCode == 404:
		return nil, &ApiError{StatusCode: 404, Message: "SurveyCTO /formList endpoint not found on this server"}
	case resp.StatusCode >= 400:
		return nil, &ApiError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("SurveyCTO /formList failed with status %d", resp.StatusCode),
		}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "xml") && !strings.HasPrefix(strings.TrimSpace(string(body)), "<") {
		return nil, &ParseError{
			Message: fmt.Sprintf("SurveyCTO /formList did not return XML. content-type=%q snippet=%q", contentType, snippet(body)),
		}
	}

	var parsed formListXML
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, &ParseError{Message: "unable to parse SurveyCTO form list response (invalid XML)"}
	}

	forms := make([]Form, 0, len(parsed.XForms))
	for _, xf := range parsed.XForms {
		formID := strings.TrimSpace(xf.FormID)
		if formID == "" {
			continue
		}
		title := strings.TrimSpace(xf.Name)
		if title == "" {
			title = formID
		}
		forms = append(forms, Form{
			FormID:  formID,
			Title:   title,
			Version: strings.TrimSpace(xf.Version),
		})
	}
	return forms, nil
}

func (s *SurveyCTOServiceImpl) fetchFormIDs(ctx context.Context, creds session.Credentials) ([]string, error) {
	resp, body, err := s.get(ctx, creds, creds.ServerURL+"/api/v2/forms/ids", "application/json")
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return nil, ErrAuthentication
	case resp.StatusCode == 404:
		return nil, &ApiError{StatusCode: 404, Message: "SurveyCTO /api/v2/forms/ids not found on this server"}
	case resp.StatusCode >= 400:
		return nil, &ApiError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("SurveyCTO forms ids request failed with status %d. snippet=%q", resp.StatusCode, snippet(body)),
		}
	}

	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "json") {
		return nil, &ParseError{
			Message: fmt.Sprintf("SurveyCTO forms ids returned non-JSON. snippet=%q", snippet(body)),
		}
	}

	// Either {"formIds": [...much]} or a bare array
	var wrapper struct {
		FormIDs []string               `json:"formIds"`
		Error   map[string]interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if len(wrapper.Error) > 0 {
			return nil, &ApiError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("SurveyCTO API error: %v", wrapper.Error),
			}
		}
		if wrapper.FormIDs != nil {
			return cleanIDs(wrapper.FormIDs), nil
		}
	}

	var plain []string
	if err := json.Unmarshal(body, &plain); err == nil {
		return cleanIDs(plain), nil
	}

	return nil, &ParseError{Message: "SurveyCTO forms ids response missing 'formIds'"}
}

func (s *SurveyCTOServiceImpl) get(ctx context.Context, creds session.Credentials, url, accept string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-OpenRosa-Version", "1.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrServerConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrServerConnection, err)
	}
	return resp, body, nil
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseCooldownSeconds(body []byte) int {
	match := cooldownPattern.FindSubmatch(body)
	if match == nil {
		return 0
	}
	seconds, err := strconv.Atoi(string(match[1]))
	if err != nil {
		return 0
	}
	return seconds
}

func snippet(body []byte) string {
	text := strings.ReplaceAll(string(body), "\n", " ")
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}
