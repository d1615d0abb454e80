package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// ErrNoGmailToken is returned when the OAuth2 token file has not been created yet
var ErrNoGmailToken = errors.New("gmail token not found, run the gmail-token command first")

// GmailNotifier sends mail through the Gmail API as the authorized user
type GmailNotifier struct {
	service *gmail.Service
	from    string
}

// NewGmailNotifier builds a Gmail client from an OAuth2 client credentials file
// and a previously saved token.
func NewGmailNotifier(ctx context.Context, credentialsFile, tokenFile, from string) (*GmailNotifier, error) {
	config, err := gmailConfig(credentialsFile)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoGmailToken
		}
		return nil, fmt.Errorf("unable to read gmail token: %w", err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}
	return &GmailNotifier{service: srv, from: from}, nil
}

func (g *GmailNotifier) Send(ctx context.Context, msg Message) error {
	raw := buildRFC2822(g.from, msg)
	gm := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := g.service.Users.Messages.Send("me", gm).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	return nil
}

func gmailConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return config, nil
}

// AuthorizeGmail runs the one-time consent flow: it prints the consent URL to
// out, reads the authorization code from in and saves the token to tokenFile.
func AuthorizeGmail(ctx context.Context, credentialsFile, tokenFile string, in io.Reader, out io.Writer) error {
	config, err := gmailConfig(credentialsFile)
	if err != nil {
		return err
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	fmt.Fprintf(out, "Saving credential file to: %s\n", tokenFile)
	return saveToken(tokenFile, tok)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// buildRFC2822 renders msg as a multipart/alternative message, or text/plain
// when there is no HTML part.
func buildRFC2822(from string, msg Message) []byte {
	var b bytes.Buffer
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.Text)
		return b.Bytes()
	}

	const boundary = "recruit-crm-alt"
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n", boundary, msg.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}
