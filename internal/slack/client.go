package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"outbound/internal"
	"outbound/internal/config"
)

const apiBaseURL = "https://slack.com/api"

// Client fetches channel history, thread replies and attached files from
// the Slack Web API.
type Client struct {
	token       string
	channel     string
	downloadDir string
	httpClient  *http.Client
	limiter     *rate.Limiter
	userNames   map[string]string
}

func NewClient(cfg config.Config) *Client {
	rps := cfg.SlackRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		token:       cfg.SlackBotToken,
		channel:     cfg.SlackChannelID,
		downloadDir: cfg.DownloadDir,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.SlackTimeoutMs) * time.Millisecond},
		limiter:     rate.NewLimiter(rate.Limit(rps), rps),
		userNames:   map[string]string{},
	}
}

type Message struct {
	TS       string `json:"ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts"`
	Files    []File `json:"files"`
}

type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Filetype    string `json:"filetype"`
	DownloadURL string `json:"url_private_download"`
}

type apiResponse struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
	Metadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
	User struct {
		RealName string `json:"real_name"`
	} `json:"user"`
}

// FetchMessages pages through conversations.history for the window.
func (c *Client) FetchMessages(ctx context.Context, oldest, latest time.Time) ([]Message, error) {
	all := []Message{}
	cursor := ""

	for {
		params := url.Values{}
		params.Set("channel", c.channel)
		params.Set("oldest", strconv.FormatInt(oldest.Unix(), 10))
		params.Set("latest", strconv.FormatInt(latest.Unix(), 10))
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		resp, err := c.call(ctx, "conversations.history", params)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Messages...)

		if !resp.HasMore || resp.Metadata.NextCursor == "" {
			break
		}
		cursor = resp.Metadata.NextCursor
	}

	log.Printf("slack fetch channel=%s messages=%d", c.channel, len(all))
	return all, nil
}

// FetchReplies returns the replies of a thread, excluding the original.
func (c *Client) FetchReplies(ctx context.Context, threadTS string) ([]Message, error) {
	params := url.Values{}
	params.Set("channel", c.channel)
	params.Set("ts", threadTS)

	resp, err := c.call(ctx, "conversations.replies", params)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) <= 1 {
		return nil, nil
	}
	return resp.Messages[1:], nil
}

// FetchThreads assembles complete thread records for the window:
// replies collected, spreadsheet attachments downloaded, user display
// names resolved. Per-thread failures degrade to partial records.
func (c *Client) FetchThreads(ctx context.Context, oldest, latest time.Time) ([]internal.ThreadRecord, error) {
	messages, err := c.FetchMessages(ctx, oldest, latest)
	if err != nil {
		return nil, err
	}

	records := make([]internal.ThreadRecord, 0, len(messages))
	for _, msg := range messages {
		rec := internal.ThreadRecord{
			TS:       msg.TS,
			User:     msg.User,
			UserName: c.userName(ctx, msg.User),
			Text:     msg.Text,
		}

		if msg.ThreadTS != "" {
			replies, err := c.FetchReplies(ctx, msg.ThreadTS)
			if err != nil {
				log.Printf("replies skipped ts=%s: %v", msg.TS, err)
			}
			for _, reply := range replies {
				rec.Replies = append(rec.Replies, internal.Reply{TS: reply.TS, User: reply.User, Text: reply.Text})
			}
		}

		for _, file := range msg.Files {
			if file.Filetype != "xls" && file.Filetype != "xlsx" {
				continue
			}
			path, err := c.DownloadFile(ctx, file)
			if err != nil {
				log.Printf("download skipped file=%s: %v", file.Name, err)
				continue
			}
			rec.Files = append(rec.Files, internal.DownloadedFile{Name: file.Name, Filepath: path})
		}

		records = append(records, rec)
	}

	return records, nil
}

// DownloadFile stores an attachment under the download directory and
// returns its local path.
func (c *Client) DownloadFile(ctx context.Context, file File) (string, error) {
	if file.DownloadURL == "" {
		return "", fmt.Errorf("file %s has no download url", file.Name)
	}
	if err := os.MkdirAll(c.downloadDir, 0o755); err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.DownloadURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", file.Name, resp.StatusCode)
	}

	path := filepath.Join(c.downloadDir, sanitizeFilename(file.Name))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

// userName resolves a user ID to the profile's real name, cached per
// client. Lookup failure degrades to the raw ID.
func (c *Client) userName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	if name, ok := c.userNames[userID]; ok {
		return name
	}

	params := url.Values{}
	params.Set("user", userID)
	resp, err := c.call(ctx, "users.info", params)
	name := userID
	if err == nil && resp.User.RealName != "" {
		name = resp.User.RealName
	}
	c.userNames[userID] = name
	return name
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s?%s", apiBaseURL, method, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("slack %s: %s", method, parsed.Error)
	}
	return &parsed, nil
}

func sanitizeFilename(name string) string {
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "<", "_", ">", "_", "|", "_")
	out := repl.Replace(strings.TrimSpace(name))
	if out == "" {
		return "attachment"
	}
	return out
}
