package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/application"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

// methodSpec 批量文件中的支付方式，type 决定使用哪些字段
type methodSpec struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Active *bool  `json:"active"`

	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	Brand       string `json:"brand"`
	Holder      string `json:"holder"`

	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	AccountType   string `json:"account_type"`
	BankName      string `json:"bank_name"`

	WalletType string          `json:"wallet_type"`
	Email      string          `json:"email"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
}

type batchEntry struct {
	Method methodSpec      `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

func (m methodSpec) active() bool {
	return m.Active == nil || *m.Active
}

func (m methodSpec) toMethod() (domain.PaymentMethod, error) {
	switch domain.MethodKind(m.Type) {
	case domain.KindCreditCard:
		brand, ok := domain.ParseCardBrand(m.Brand)
		if !ok {
			return nil, fmt.Errorf("method %s: unknown card brand %q", m.ID, m.Brand)
		}
		return domain.NewCreditCard(m.ID, m.active(), m.Number, m.ExpiryMonth, m.ExpiryYear, brand, m.Holder)
	case domain.KindBankAccount:
		accountType, ok := domain.ParseAccountType(m.AccountType)
		if !ok {
			return nil, fmt.Errorf("method %s: unknown account type %q", m.ID, m.AccountType)
		}
		return domain.NewBankAccount(m.ID, m.active(), m.AccountNumber, m.RoutingNumber, accountType, m.BankName, m.Balance)
	case domain.KindDigitalWallet:
		walletType, ok := domain.ParseWalletType(m.WalletType)
		if !ok {
			return nil, fmt.Errorf("method %s: unknown wallet type %q", m.ID, m.WalletType)
		}
		return domain.NewDigitalWallet(m.ID, m.active(), walletType, m.Email, m.Balance, m.Currency)
	default:
		return nil, fmt.Errorf("method %s: unknown method type %q", m.ID, m.Type)
	}
}

// decodeBatch 解析 JSON 数组形式的支付指令
func decodeBatch(r io.Reader) ([]application.PaymentRequest, error) {
	var entries []batchEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	requests := make([]application.PaymentRequest, 0, len(entries))
	for i, e := range entries {
		method, err := e.Method.toMethod()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		requests = append(requests, application.PaymentRequest{Method: method, Amount: e.Amount})
	}
	return requests, nil
}

func loadBatch(path string) ([]application.PaymentRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	return decodeBatch(f)
}
