// Package directory fetches the user directory from a published spreadsheet CSV.
package directory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/leave-approval-api/internal/models"
)

// ErrNotPublished signals that the sheet URL served an HTML page instead of CSV.
var ErrNotPublished = errors.New("directory sheet is not published as CSV")

var (
	nameHeaders     = []string{"Employee Name", "Name", "Full Name", "Staff Name"}
	roleHeaders     = []string{"Role", "Designation", "Position", "Rank", "UserRole"}
	idHeaders       = []string{"ID", "Employee ID", "Staff ID", "S/N"}
	usernameHeaders = []string{"Username", "User", "Login ID", "Email"}
	passwordHeaders = []string{"Password", "Pass", "PWD", "Security Key"}
)

// Client downloads and parses the directory CSV.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient builds a client for the published CSV url.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}, url: url}
}

// Configured reports whether a source url was provided.
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// Fetch downloads the directory. An empty sheet yields an empty slice and no error.
func (c *Client) Fetch(ctx context.Context) ([]models.DirectoryUser, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("directory url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch directory: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	text := string(body)
	if strings.HasPrefix(strings.TrimSpace(text), "<!DOCTYPE html>") || strings.Contains(text, "google-signin") {
		return nil, ErrNotPublished
	}
	return Parse(strings.NewReader(text))
}

// Parse reads directory rows from CSV with a header line. Header names are matched
// case-insensitively against known aliases; rows without a name are skipped.
func Parse(r io.Reader) ([]models.DirectoryUser, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.DirectoryUser{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse directory header: %w", err)
	}
	cols := columns{
		name:     findColumn(header, nameHeaders),
		role:     findColumn(header, roleHeaders),
		id:       findColumn(header, idHeaders),
		username: findColumn(header, usernameHeaders),
		password: findColumn(header, passwordHeaders),
	}

	users := make([]models.DirectoryUser, 0)
	for index := 0; ; index++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse directory row %d: %w", index+1, err)
		}
		if blank(record) {
			index--
			continue
		}
		name := field(record, cols.name)
		if name == "" {
			continue
		}
		id := field(record, cols.id)
		if id == "" {
			id = "uid-" + strconv.Itoa(index)
		}
		users = append(users, models.DirectoryUser{
			ID:         id,
			Name:       name,
			Role:       NormalizeRole(field(record, cols.role)),
			Username:   field(record, cols.username),
			Credential: field(record, cols.password),
		})
	}
	return users, nil
}

// NormalizeRole maps free-form designations onto the closed role set by substring match.
// Anything unrecognised becomes a Reliever.
func NormalizeRole(raw string) models.Role {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "operator"):
		return models.RoleOperator
	case strings.Contains(v, "team leader"), strings.Contains(v, "leader"), strings.Contains(v, "tl"):
		return models.RoleTeamLeader
	case strings.Contains(v, "incharge"), strings.Contains(v, "in-charge"):
		return models.RoleIncharge
	case strings.Contains(v, "project manager"), strings.Contains(v, "pm"):
		return models.RoleProjectManager
	default:
		return models.RoleReliever
	}
}

type columns struct {
	name, role, id, username, password int
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, alias := range aliases {
			if strings.EqualFold(h, alias) {
				return i
			}
		}
	}
	return -1
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
