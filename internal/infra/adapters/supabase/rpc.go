package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
)

var _ adapter.RemoteProcedures = (*RPC)(nil)

// RPC calls the loyalty procedures through PostgREST as the signed-in
// member, so row-level security applies.
type RPC struct {
	client *Client
	tokens TokenSource
}

// TokenSource yields the bearer for RPC calls; "" means anonymous.
type TokenSource interface {
	AccessToken() string
}

func NewRPC(client *Client, tokens TokenSource) *RPC {
	return &RPC{client: client, tokens: tokens}
}

// AccessToken exposes the current access token to RPC.
func (g *AuthGateway) AccessToken() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return ""
	}
	return g.session.AccessToken
}

func (r *RPC) call(ctx context.Context, fn string, args map[string]any) ([]byte, error) {
	bearer := ""
	if r.tokens != nil {
		bearer = r.tokens.AccessToken()
	}
	data, err := r.client.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, bearer, args)
	if err != nil {
		return nil, mapRPCError(fn, err)
	}
	return data, nil
}

func (r *RPC) RedeemReward(ctx context.Context, userID, rewardID string) (string, error) {
	data, err := r.call(ctx, "fn_redeem_reward", map[string]any{"p_user": userID, "p_reward": rewardID})
	if err != nil {
		return "", err
	}
	return scalarString(data), nil
}

func (r *RPC) GenerateMemberQRToken(ctx context.Context, userID string) (string, error) {
	data, err := r.call(ctx, "fn_generate_member_qr_token", map[string]any{"p_user_id": userID})
	if err != nil {
		return "", err
	}
	return scalarString(data), nil
}

// ValidateMemberQRToken reads the first row of the table-returning procedure.
// No rows means the token is unknown.
func (r *RPC) ValidateMemberQRToken(ctx context.Context, token string) (*model.MemberQRValidation, error) {
	data, err := r.call(ctx, "fn_validate_member_qr_token", map[string]any{"p_qr_token": token})
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(data)
	if res.IsArray() {
		res = res.Get("0")
	}
	if !res.Exists() {
		return &model.MemberQRValidation{IsValid: false}, nil
	}
	var v model.MemberQRValidation
	if err := json.Unmarshal([]byte(res.Raw), &v); err != nil {
		return nil, fmt.Errorf("fn_validate_member_qr_token: decode: %w", err)
	}
	return &v, nil
}

// scalarString decodes a PostgREST scalar result: a JSON string or null.
func scalarString(data []byte) string {
	res := gjson.ParseBytes(data)
	if res.Type == gjson.String {
		return res.String()
	}
	return ""
}

func mapRPCError(fn string, err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", fn, err)
	}
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == "23514", strings.Contains(msg, "insufficient points"):
		return fmt.Errorf("%s: %w", fn, domain.ErrInsufficientPoints)
	case strings.Contains(msg, "not found"), strings.Contains(msg, "not available"):
		return fmt.Errorf("%s: %s: %w", fn, apiErr.Message, domain.ErrNotFound)
	case apiErr.Status == http.StatusUnauthorized, apiErr.Code == "PGRST301":
		return fmt.Errorf("%s: %w", fn, &domain.NotAuthenticatedError{Op: fn})
	}
	return fmt.Errorf("%s: %w", fn, apiErr)
}
