package workflow

import (
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// BuildDefaultRegistry declares the transition tables for all built-in document types
func BuildDefaultRegistry() (*domainwf.Registry, error) {
	builders := []func() (*domainwf.Table, error){
		BuildVendorInvoiceTable,
		BuildPaymentRequestTable,
		BuildProfileChangeTable,
		BuildOrganizationInvoiceTable,
	}

	tables := make([]*domainwf.Table, 0, len(builders))
	for _, build := range builders {
		table, err := build()
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	return domainwf.NewRegistry(tables...)
}

// LoadRegistry builds the registry from a definitions file, or the built-in tables when path is empty
func LoadRegistry(path string) (*domainwf.Registry, error) {
	if path == "" {
		return BuildDefaultRegistry()
	}

	tables, err := domainwf.LoadDefinitionsFile(path)
	if err != nil {
		return nil, err
	}
	return domainwf.NewRegistry(tables...)
}

// BuildVendorInvoiceTable creates the vendor invoice table
func BuildVendorInvoiceTable() (*domainwf.Table, error) {
	b := domainwf.NewBuilder(domainwf.DocVendorInvoice).
		States(
			domainwf.StatePending,
			domainwf.StateReadyForProcessing,
			domainwf.StateSentToAdmin,
			domainwf.StateSentToAccounting,
			domainwf.StateReadyForPayment,
			domainwf.StatePaid,
			domainwf.StateRejected,
		).
		Initial(domainwf.StatePending).
		Terminal(domainwf.StatePaid, domainwf.StateRejected)

	b.Configure(domainwf.StatePending).
		Permit(domainwf.StateReadyForProcessing, domainwf.RoleVendor)

	b.Configure(domainwf.StateReadyForProcessing).
		Permit(domainwf.StateSentToAdmin, domainwf.RoleVendor, domainwf.RoleSystem).
		PermitIf(domainwf.StateRejected, domainwf.GuardHasAdminComment, domainwf.RoleAdmin)

	b.Configure(domainwf.StateSentToAdmin).
		Permit(domainwf.StateSentToAccounting, domainwf.RoleAdmin).
		PermitIf(domainwf.StateRejected, domainwf.GuardHasAdminComment, domainwf.RoleAdmin)

	b.Configure(domainwf.StateSentToAccounting).
		Permit(domainwf.StateReadyForPayment, domainwf.RoleAccounting).
		PermitIf(domainwf.StateRejected, domainwf.GuardHasAdminComment, domainwf.RoleAdmin)

	b.Configure(domainwf.StateReadyForPayment).
		Permit(domainwf.StatePaid, domainwf.RoleAccounting).
		PermitIf(domainwf.StateRejected, domainwf.GuardHasAdminComment, domainwf.RoleAdmin)

	// PAID and REJECTED are terminal

	return b.Build()
}

// BuildPaymentRequestTable creates the payment request table
func BuildPaymentRequestTable() (*domainwf.Table, error) {
	b := domainwf.NewBuilder(domainwf.DocPaymentRequest).
		States(
			domainwf.StatePending,
			domainwf.StateReturnedToHR,
			domainwf.StateApproved,
			domainwf.StateRejected,
		).
		Initial(domainwf.StatePending).
		Terminal(domainwf.StateApproved, domainwf.StateRejected)

	b.Configure(domainwf.StatePending).
		Permit(domainwf.StateApproved, domainwf.RoleHR).
		Permit(domainwf.StateReturnedToHR, domainwf.RoleApprover)

	b.Configure(domainwf.StateReturnedToHR).
		Permit(domainwf.StateApproved, domainwf.RoleHR).
		Permit(domainwf.StateRejected, domainwf.RoleHR)

	return b.Build()
}

// BuildProfileChangeTable creates the employee profile change table
func BuildProfileChangeTable() (*domainwf.Table, error) {
	b := domainwf.NewBuilder(domainwf.DocProfileChange).
		States(domainwf.StatePending, domainwf.StateApproved, domainwf.StateRejected).
		Initial(domainwf.StatePending).
		Terminal(domainwf.StateApproved, domainwf.StateRejected)

	b.Configure(domainwf.StatePending).
		Permit(domainwf.StateApproved, domainwf.RoleHR).
		Permit(domainwf.StateRejected, domainwf.RoleHR)

	return b.Build()
}

// BuildOrganizationInvoiceTable creates the organization invoice table
func BuildOrganizationInvoiceTable() (*domainwf.Table, error) {
	b := domainwf.NewBuilder(domainwf.DocOrganizationInvoice).
		States(
			domainwf.StatePending,
			domainwf.StateSentToAccounting,
			domainwf.StateReadyForPayment,
			domainwf.StatePaid,
			domainwf.StateRejected,
		).
		Initial(domainwf.StatePending).
		Terminal(domainwf.StatePaid, domainwf.StateRejected)

	b.Configure(domainwf.StatePending).
		Permit(domainwf.StateSentToAccounting, domainwf.RoleAdmin).
		PermitIf(domainwf.StateRejected, domainwf.GuardHasAdminComment, domainwf.RoleAdmin)

	b.Configure(domainwf.StateSentToAccounting).
		Permit(domainwf.StateReadyForPayment, domainwf.RoleAccounting).
		PermitIf(domainwf.StateRejected, domainwf.GuardHasAdminComment, domainwf.RoleAdmin)

	b.Configure(domainwf.StateReadyForPayment).
		Permit(domainwf.StatePaid, domainwf.RoleAccounting).
		PermitIf(domainwf.StateRejected, domainwf.GuardHasAdminComment, domainwf.RoleAdmin)

	return b.Build()
}
