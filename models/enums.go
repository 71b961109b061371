package models

type IndicatorFamily string

const (
	IndicatorFamilyOpenRatio        IndicatorFamily = "OPEN_RATIO"
	IndicatorFamilyCompletionRatio  IndicatorFamily = "COMPLETION_RATIO"
	IndicatorFamilyFinancialFeeRate IndicatorFamily = "FINANCIAL_FEE_RATE"
	IndicatorFamilyDeviationCount   IndicatorFamily = "DEVIATION_COUNT"
	IndicatorFamilyExternal         IndicatorFamily = "EXTERNAL"
)

func (f IndicatorFamily) IsValid() bool {
	switch f {
	case IndicatorFamilyOpenRatio, IndicatorFamilyCompletionRatio, IndicatorFamilyFinancialFeeRate,
		IndicatorFamilyDeviationCount, IndicatorFamilyExternal:
		return true
	}
	return false
}

type NonConformitySource string

const (
	NonConformitySourceAudit         NonConformitySource = "AUDIT"
	NonConformitySourceTicket        NonConformitySource = "TICKET"
	NonConformitySourceCustomerClaim NonConformitySource = "CUSTOMER_CLAIM"
	NonConformitySourceInternal      NonConformitySource = "INTERNAL"
	// NonConformitySourceIndicators marks records raised by the indicator engine itself.
	NonConformitySourceIndicators NonConformitySource = "INDICATORS"
)

type NonConformityStatus string

const (
	NonConformityStatusOpen  NonConformityStatus = "OPEN"
	NonConformityStatusFixed NonConformityStatus = "FIXED"
)

type TransactionKind string

const (
	TransactionKindRevenue TransactionKind = "REVENUE"
	TransactionKindFee     TransactionKind = "FEE"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "A"
	UserRoleOwner  UserRole = "O"
	UserRoleCustom UserRole = "C"
)
