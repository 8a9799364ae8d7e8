package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/supabase-community/supabase-go"
	"storia-studio-server/modules/common/config"
)

// ErrInsufficientTokens - 잔액 부족 (호출자는 충전 플로우로 안내)
var ErrInsufficientTokens = errors.New("insufficient tokens")

// rpcClient - 잔액 RPC 호출용 (15초를 넘기면 실패로 처리)
var rpcClient = &http.Client{Timeout: 15 * time.Second}

// Ledger 트랜잭션 종류
const (
	KindConsumption = "consumption"
	KindTopUp       = "top_up"
	KindPlanUpgrade = "plan_upgrade"
	KindRefund      = "refund"
)

type Client struct {
	supabase *supabase.Client
}

// ValidationResult - 사전 잔액 검증 결과 (advisory - 차감의 근거로 쓰지 않음)
type ValidationResult struct {
	OK      bool
	Balance int
	Reason  string
}

// DebitResult - 차감 전후 잔액
type DebitResult struct {
	BalanceBefore int `json:"balance_before"`
	BalanceAfter  int `json:"balance_after"`
}

// CreditResult - 충전 결과 (천장에 잘린 실제 적용량 포함)
type CreditResult struct {
	AppliedDelta  int
	BalanceBefore int
	BalanceAfter  int
}

// NewClient - Wallet 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// GetBalance - 현재 토큰 잔액 조회
func (c *Client) GetBalance(ctx context.Context, userID string) (int, error) {
	var members []struct {
		StoriaMemberTokens int `json:"storia_member_tokens"`
	}

	data, _, err := c.supabase.From("storia_member").
		Select("storia_member_tokens", "", false).
		Eq("storia_member_id", userID).
		ExecuteWithContext(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to fetch user tokens: %w", err)
	}

	if err := json.Unmarshal(data, &members); err != nil {
		return 0, fmt.Errorf("failed to parse member data: %w", err)
	}

	if len(members) == 0 {
		return 0, fmt.Errorf("user not found: %s", userID)
	}

	return members[0].StoriaMemberTokens, nil
}

// Validate - 유료 작업 1건 커밋 전 잔액 검증
// 여기서 읽은 잔액은 UX용 캐시일 뿐, 차감 결정은 Debit의 조건부 UPDATE가 한다
func (c *Client) Validate(ctx context.Context, userID string, cost int) (*ValidationResult, error) {
	balance, err := c.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	if balance < cost {
		return &ValidationResult{
			OK:      false,
			Balance: balance,
			Reason:  fmt.Sprintf("Insufficient tokens. Required: %d, Available: %d", cost, balance),
		}, nil
	}

	return &ValidationResult{OK: true, Balance: balance}, nil
}

// Debit - 토큰 차감 + consumption 트랜잭션 기록
// 차감은 storia_spend_tokens RPC의 단일 조건부 UPDATE로 수행 (음수 잔액 불가)
// TODO: reserve-then-confirm RPC로 묶으면 생성-차감 사이 크래시 갭이 닫힌다
func (c *Client) Debit(ctx context.Context, userID string, cost int, ref string) (*DebitResult, error) {
	log.Printf("💰 Debiting tokens: User=%s, Cost=%d, Ref=%s", userID, cost, ref)

	result, err := c.callSpendRPC(ctx, userID, cost)
	if err != nil {
		return nil, err
	}

	log.Printf("💰 Token balance: %d → %d (-%d)", result.BalanceBefore, result.BalanceAfter, cost)

	// 트랜잭션 기록 (실패해도 차감 자체는 유효 - 로그만 남김)
	if err := c.recordTransaction(ctx, userID, -cost, result.BalanceBefore, result.BalanceAfter, KindConsumption, ref, "Scene render"); err != nil {
		log.Printf("⚠️  Failed to record consumption transaction for %s: %v", ref, err)
	}

	return result, nil
}

// Credit - 토큰 충전 (플랜 천장으로 잘림, 초과분은 소멸)
// 기록되는 delta는 명목 금액이 아니라 실제 적용량
// 읽고-쓰는 두 단계라 동시 차감과 겹치면 충전이 유실되거나 천장을 넘을 수 있다
// TODO: storia_spend_tokens처럼 조건부 UPDATE를 하는 storia_credit_tokens RPC로 교체
func (c *Client) Credit(ctx context.Context, userID string, amount int, ceiling int, kind string, ref string) (*CreditResult, error) {
	balance, err := c.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	applied := ClipCredit(balance, amount, ceiling)
	newBalance := balance + applied

	if applied < amount {
		log.Printf("⚠️  Credit clipped by plan ceiling: nominal=%d, applied=%d (balance=%d, ceiling=%d)",
			amount, applied, balance, ceiling)
	}

	if applied > 0 {
		_, _, err = c.supabase.From("storia_member").
			Update(map[string]interface{}{
				"storia_member_tokens": newBalance,
			}, "", "").
			Eq("storia_member_id", userID).
			ExecuteWithContext(ctx)

		if err != nil {
			return nil, fmt.Errorf("failed to credit tokens: %w", err)
		}
	}

	if err := c.recordTransaction(ctx, userID, applied, balance, newBalance, kind, ref, "Token credit"); err != nil {
		log.Printf("⚠️  Failed to record %s transaction for %s: %v", kind, ref, err)
	}

	log.Printf("✅ Credited %d tokens to user %s (%d → %d)", applied, userID, balance, newBalance)

	return &CreditResult{
		AppliedDelta:  applied,
		BalanceBefore: balance,
		BalanceAfter:  newBalance,
	}, nil
}

// ClipCredit - 천장 적용된 실제 충전량 계산
// appliedDelta = min(nominalAmount, ceiling - balance), 항상 0 이상
func ClipCredit(balance, amount, ceiling int) int {
	if amount <= 0 {
		return 0
	}
	room := ceiling - balance
	if room <= 0 {
		return 0
	}
	if amount > room {
		return room
	}
	return amount
}

// spendRPCResponse - storia_spend_tokens RPC 응답
type spendRPCResponse struct {
	OK            bool   `json:"ok"`
	Reason        string `json:"reason"`
	BalanceBefore int    `json:"balance_before"`
	BalanceAfter  int    `json:"balance_after"`
}

// callSpendRPC - storia_spend_tokens 호출
// UPDATE storia_member SET tokens = tokens - cost WHERE id = ? AND tokens >= cost
func (c *Client) callSpendRPC(ctx context.Context, userID string, cost int) (*DebitResult, error) {
	cfg := config.GetConfig()

	body, err := json.Marshal(map[string]interface{}{
		"p_user_id": userID,
		"p_cost":    cost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc body: %w", err)
	}

	rpcURL := fmt.Sprintf("%s/rest/v1/rpc/storia_spend_tokens", cfg.SupabaseURL)

	req, err := http.NewRequestWithContext(ctx, "POST", rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SupabaseServiceKey)
	req.Header.Set("apikey", cfg.SupabaseServiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := rpcClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call spend rpc: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rpc response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spend rpc failed with status %d: %s", resp.StatusCode, string(data))
	}

	return parseSpendResponse(data)
}

// parseSpendResponse - RPC 응답 파싱 (잔액 부족은 ErrInsufficientTokens)
func parseSpendResponse(data []byte) (*DebitResult, error) {
	var rpcResp spendRPCResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse spend rpc response: %w", err)
	}

	if !rpcResp.OK {
		if rpcResp.Reason == "insufficient_tokens" {
			return nil, fmt.Errorf("balance %d: %w", rpcResp.BalanceBefore, ErrInsufficientTokens)
		}
		return nil, fmt.Errorf("spend rpc rejected: %s", rpcResp.Reason)
	}

	return &DebitResult{
		BalanceBefore: rpcResp.BalanceBefore,
		BalanceAfter:  rpcResp.BalanceAfter,
	}, nil
}

// recordTransaction - storia_ledger에 불변 감사 레코드 생성
func (c *Client) recordTransaction(ctx context.Context, userID string, delta, before, after int, kind, ref, description string) error {
	transactionData := map[string]interface{}{
		"user_id":              userID,
		"transaction_kind":     kind,
		"amount_delta":         delta,
		"balance_before":       before,
		"balance_after":        after,
		"description":          description,
		"external_payment_ref": ref,
	}

	_, _, err := c.supabase.From("storia_ledger").
		Insert(transactionData, false, "", "", "").
		ExecuteWithContext(ctx)

	return err
}
