// 包 domain 支付引擎的领域模型：支付方式、支付结果、处理器与审计接口
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingMethodID   = errors.New("payment method id is required")
	ErrInvalidCardNumber = errors.New("card number must contain at least 4 digits")
	ErrInvalidExpiry     = errors.New("expiry month must be between 1 and 12")
	ErrNegativeBalance   = errors.New("balance must not be negative")
	ErrInvalidEmail      = errors.New("linked email is required")
)

// MethodKind 支付方式类型，用于日志与指标标签
type MethodKind string

const (
	KindCreditCard    MethodKind = "CREDIT_CARD"
	KindBankAccount   MethodKind = "BANK_ACCOUNT"
	KindDigitalWallet MethodKind = "DIGITAL_WALLET"
)

// 处理器族键，PaymentService 以此路由
const (
	FamilyCreditCard    = "credit_card"
	FamilyBankTransfer  = "bank_transfer"
	FamilyDigitalWallet = "digital_wallet"
)

// PaymentMethod 支付方式（封闭的变体集合）
// 仅 CreditCard、BankAccount、DigitalWallet 实现该接口，值在构造后不可变
// 指向变体的指针同样满足接口，使用前经 Canonical 统一为值
type PaymentMethod interface {
	MethodID() string
	IsActive() bool
	Kind() MethodKind
	isPaymentMethod()
}

// MethodInfo 所有支付方式共有的身份信息
type MethodInfo struct {
	ID     string
	Active bool
}

func (m MethodInfo) MethodID() string { return m.ID }
func (m MethodInfo) IsActive() bool   { return m.Active }

// Canonical 把指向变体的指针解引用为值，nil 指针视为 nil
func Canonical(method PaymentMethod) PaymentMethod {
	switch m := method.(type) {
	case *CreditCard:
		if m == nil {
			return nil
		}
		return *m
	case *BankAccount:
		if m == nil {
			return nil
		}
		return *m
	case *DigitalWallet:
		if m == nil {
			return nil
		}
		return *m
	default:
		return method
	}
}

// Family 返回负责该支付方式的处理器族键
func Family(method PaymentMethod) (string, bool) {
	switch Canonical(method).(type) {
	case CreditCard:
		return FamilyCreditCard, true
	case BankAccount:
		return FamilyBankTransfer, true
	case DigitalWallet:
		return FamilyDigitalWallet, true
	default:
		return "", false
	}
}

// CardBrand 卡组织
type CardBrand string

const (
	BrandVisa       CardBrand = "VISA"
	BrandMastercard CardBrand = "MASTERCARD"
	BrandAmex       CardBrand = "AMEX"
	BrandDiscover   CardBrand = "DISCOVER"
)

// CreditCard 信用卡
// 卡号只以掩码或后四位的形式对外暴露
type CreditCard struct {
	MethodInfo
	number      string
	ExpiryMonth int
	ExpiryYear  int
	Brand       CardBrand
	HolderName  string
}

// NewCreditCard 创建信用卡，卡号中的空格与连字符会被去除
func NewCreditCard(id string, active bool, number string, expiryMonth, expiryYear int, brand CardBrand, holder string) (CreditCard, error) {
	if id == "" {
		return CreditCard{}, ErrMissingMethodID
	}
	digits := strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(digits) < 4 {
		return CreditCard{}, ErrInvalidCardNumber
	}
	if expiryMonth < 1 || expiryMonth > 12 {
		return CreditCard{}, ErrInvalidExpiry
	}
	return CreditCard{
		MethodInfo:  MethodInfo{ID: id, Active: active},
		number:      digits,
		ExpiryMonth: expiryMonth,
		ExpiryYear:  expiryYear,
		Brand:       brand,
		HolderName:  holder,
	}, nil
}

func (CreditCard) Kind() MethodKind { return KindCreditCard }
func (CreditCard) isPaymentMethod() {}

// LastFour 卡号后四位
func (c CreditCard) LastFour() string {
	if len(c.number) < 4 {
		return c.number
	}
	return c.number[len(c.number)-4:]
}

// MaskedNumber 掩码卡号，例如 **** **** **** 4242
func (c CreditCard) MaskedNumber() string {
	return "**** **** **** " + c.LastFour()
}

// IsExpired 有效期月份的最后一天结束后视为过期
func (c CreditCard) IsExpired(now time.Time) bool {
	firstOfNextMonth := time.Date(c.ExpiryYear, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(firstOfNextMonth)
}

// AccountType 银行账户类型
type AccountType string

const (
	AccountChecking AccountType = "CHECKING"
	AccountSavings  AccountType = "SAVINGS"
	AccountBusiness AccountType = "BUSINESS"
)

// BankAccount 银行账户，余额为授权时刻的快照
type BankAccount struct {
	MethodInfo
	accountNumber string
	RoutingNumber string
	AccountType   AccountType
	BankName      string
	Balance       decimal.Decimal
}

// NewBankAccount 创建银行账户
func NewBankAccount(id string, active bool, accountNumber, routingNumber string, accountType AccountType, bankName string, balance decimal.Decimal) (BankAccount, error) {
	if id == "" {
		return BankAccount{}, ErrMissingMethodID
	}
	if balance.IsNegative() {
		return BankAccount{}, ErrNegativeBalance
	}
	return BankAccount{
		MethodInfo:    MethodInfo{ID: id, Active: active},
		accountNumber: accountNumber,
		RoutingNumber: routingNumber,
		AccountType:   accountType,
		BankName:      bankName,
		Balance:       balance,
	}, nil
}

func (BankAccount) Kind() MethodKind { return KindBankAccount }
func (BankAccount) isPaymentMethod() {}

// MaskedAccountNumber 只保留账号后四位
func (b BankAccount) MaskedAccountNumber() string {
	n := b.accountNumber
	if len(n) <= 4 {
		return "****" + n
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}

// HasSufficientFunds 余额大于零
func (b BankAccount) HasSufficientFunds() bool {
	return b.Balance.IsPositive()
}

// WalletType 电子钱包类型
type WalletType string

const (
	WalletPayPal    WalletType = "PAYPAL"
	WalletApplePay  WalletType = "APPLE_PAY"
	WalletGooglePay WalletType = "GOOGLE_PAY"
	WalletVenmo     WalletType = "VENMO"
)

var walletNames = map[WalletType]string{
	WalletPayPal:    "PayPal",
	WalletApplePay:  "Apple Pay",
	WalletGooglePay: "Google Pay",
	WalletVenmo:     "Venmo",
}

// DefaultCurrency 钱包默认币种
const DefaultCurrency = "USD"

// DigitalWallet 电子钱包
type DigitalWallet struct {
	MethodInfo
	WalletType  WalletType
	LinkedEmail string
	Balance     decimal.Decimal
	Currency    string
}

// NewDigitalWallet 创建电子钱包，currency 为空时使用 USD
func NewDigitalWallet(id string, active bool, walletType WalletType, email string, balance decimal.Decimal, currency string) (DigitalWallet, error) {
	if id == "" {
		return DigitalWallet{}, ErrMissingMethodID
	}
	if email == "" {
		return DigitalWallet{}, ErrInvalidEmail
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return DigitalWallet{
		MethodInfo:  MethodInfo{ID: id, Active: active},
		WalletType:  walletType,
		LinkedEmail: email,
		Balance:     balance,
		Currency:    strings.ToUpper(currency),
	}, nil
}

func (DigitalWallet) Kind() MethodKind { return KindDigitalWallet }
func (DigitalWallet) isPaymentMethod() {}

// DisplayName 钱包展示名，例如 "PayPal (a@b.com)"
func (w DigitalWallet) DisplayName() string {
	name, ok := walletNames[w.WalletType]
	if !ok {
		name = string(w.WalletType)
	}
	return fmt.Sprintf("%s (%s)", name, w.LinkedEmail)
}

// ParseCardBrand 大小写不敏感
func ParseCardBrand(s string) (CardBrand, bool) {
	return parseEnum(s, BrandVisa, BrandMastercard, BrandAmex, BrandDiscover)
}

// ParseAccountType 大小写不敏感
func ParseAccountType(s string) (AccountType, bool) {
	return parseEnum(s, AccountChecking, AccountSavings, AccountBusiness)
}

// ParseWalletType 大小写不敏感
func ParseWalletType(s string) (WalletType, bool) {
	return parseEnum(s, WalletPayPal, WalletApplePay, WalletGooglePay, WalletVenmo)
}

func parseEnum[T ~string](s string, values ...T) (T, bool) {
	for _, v := range values {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
