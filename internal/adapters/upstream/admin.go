package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// CreateUser adds a user on behalf of an administrator.
func (cl *Client) CreateUser(ctx context.Context, token string, u ports.NewUser) (domainauth.Principal, error) {
	var p domainauth.Principal
	err := cl.doJSON(ctx, call{
		endpoint: "admin_create",
		method:   http.MethodPost,
		path:     "/api/admin/create",
		token:    token,
		jsonBody: u,
	}, &p)
	return p, err
}

// SearchUser looks a user up by e-mail, id or username.
func (cl *Client) SearchUser(ctx context.Context, token string, q ports.UserQuery) (domainauth.Principal, error) {
	if q.Empty() {
		return domainauth.Principal{}, errors.New("user search needs at least one field")
	}
	var p domainauth.Principal
	err := cl.doJSON(ctx, call{
		endpoint: "admin_usersearch",
		method:   http.MethodPost,
		path:     "/api/admin/usersearch",
		token:    token,
		jsonBody: q,
	}, &p)
	return p, err
}

// UpdateUser replaces a user record and returns the stored result.
func (cl *Client) UpdateUser(ctx context.Context, token string, p domainauth.Principal) (domainauth.Principal, error) {
	var out domainauth.Principal
	err := cl.doJSON(ctx, call{
		endpoint: "admin_updateuser",
		method:   http.MethodPost,
		path:     "/api/admin/updateuser",
		token:    token,
		jsonBody: p,
	}, &out)
	return out, err
}

// Inbox lists the administrator mailbox. An empty mailbox is answered with 204.
func (cl *Client) Inbox(ctx context.Context, token, username string) ([]accounting.Email, error) {
	if username == "" {
		return nil, errors.New("inbox username is required")
	}
	resp, err := cl.do(ctx, call{
		endpoint: "admin_emails",
		method:   http.MethodGet,
		path:     "/api/admin/emails/" + url.PathEscape(username),
		token:    token,
	})
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	var emails []accounting.Email
	if err := decodeJSON(resp, "admin_emails", &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// DeleteEmails removes the given messages from the mailbox.
func (cl *Client) DeleteEmails(ctx context.Context, token string, emails []accounting.Email) (string, error) {
	if emails == nil {
		emails = []accounting.Email{}
	}
	return cl.doMessage(ctx, call{
		endpoint: "admin_emails_delete",
		method:   http.MethodPost,
		path:     "/api/admin/emails/delete",
		token:    token,
		jsonBody: emails,
	})
}

// SendEmail sends a message composed by an administrator.
func (cl *Client) SendEmail(ctx context.Context, token string, e ports.OutgoingEmail) (string, error) {
	return cl.doMessage(ctx, call{
		endpoint: "admin_send_email",
		method:   http.MethodPost,
		path:     "/api/admin/send-email",
		token:    token,
		jsonBody: e,
	})
}
