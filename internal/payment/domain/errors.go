package domain

import "time"

// ErrorCode 支付失败的错误码
type ErrorCode string

const (
	CodeNetworkError              ErrorCode = "NETWORK_ERROR"
	CodeTimeout                   ErrorCode = "TIMEOUT"
	CodeTemporaryFailure          ErrorCode = "TEMPORARY_FAILURE"
	CodeInsufficientFunds         ErrorCode = "INSUFFICIENT_FUNDS"
	CodeRateLimited               ErrorCode = "RATE_LIMITED"
	CodeCardExpired               ErrorCode = "CARD_EXPIRED"
	CodeAmountExceedsLimit        ErrorCode = "AMOUNT_EXCEEDS_LIMIT"
	CodeValidationError           ErrorCode = "VALIDATION_ERROR"
	CodeUnsupportedMethod         ErrorCode = "UNSUPPORTED_METHOD"
	CodeNoProcessor               ErrorCode = "NO_PROCESSOR"
	CodeProcessingError           ErrorCode = "PROCESSING_ERROR"
	CodeInactiveMethod            ErrorCode = "INACTIVE_METHOD"
	CodeInvalidAmount             ErrorCode = "INVALID_AMOUNT"
	CodeBankNetworkError          ErrorCode = "BANK_NETWORK_ERROR"
	CodeWalletServiceError        ErrorCode = "WALLET_SERVICE_ERROR"
	CodeWalletLimitExceeded       ErrorCode = "WALLET_LIMIT_EXCEEDED"
	CodeInsufficientWalletBalance ErrorCode = "INSUFFICIENT_WALLET_BALANCE"
	CodeFraudDetected             ErrorCode = "FRAUD_DETECTED"
)

// DefaultRetryDelay 未单独配置退避时间的错误码使用该值
const DefaultRetryDelay = 30 * time.Second

type retryRule struct {
	retryable bool
	delay     time.Duration
}

// 只有列出的错误码可重试，其余一律视为终态
var retryTable = map[ErrorCode]retryRule{
	CodeNetworkError:      {retryable: true, delay: 5 * time.Second},
	CodeTimeout:           {retryable: true, delay: 10 * time.Second},
	CodeTemporaryFailure:  {retryable: true, delay: DefaultRetryDelay},
	CodeInsufficientFunds: {retryable: true, delay: DefaultRetryDelay},
	CodeRateLimited:       {retryable: true, delay: 60 * time.Second},
}

// RetryPolicyFor 返回错误码是否可重试以及建议的退避时间
func RetryPolicyFor(code ErrorCode) (bool, time.Duration) {
	rule, ok := retryTable[code]
	if !ok {
		return false, DefaultRetryDelay
	}
	return rule.retryable, rule.delay
}

// IsRetryable 错误码是否可重试
func (c ErrorCode) IsRetryable() bool {
	retryable, _ := RetryPolicyFor(c)
	return retryable
}
