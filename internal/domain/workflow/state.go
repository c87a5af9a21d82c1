package workflow

// DocumentType names the transition table a document is governed by
type DocumentType string

// State represents a workflow state within a document type's table
type State string

// Role identifies the acting user's role when requesting a transition
type Role string

const (
	DocVendorInvoice       DocumentType = "vendor_invoice"
	DocPaymentRequest      DocumentType = "payment_request"
	DocProfileChange       DocumentType = "profile_change"
	DocOrganizationInvoice DocumentType = "organization_invoice"
)

const (
	StatePending            State = "pending"
	StateReadyForProcessing State = "ready_for_processing"
	StateSentToAdmin        State = "sent_to_admin"
	StateSentToAccounting   State = "sent_to_accounting"
	StateReadyForPayment    State = "ready_for_payment"
	StatePaid               State = "paid"
	StateApproved           State = "approved"
	StateRejected           State = "rejected"
	StateReturnedToHR       State = "returned_to_hr"
)

const (
	RoleVendor     Role = "vendor"
	RoleSystem     Role = "system"
	RoleAdmin      Role = "admin"
	RoleAccounting Role = "accounting"
	RoleHR         Role = "hr"
	RoleApprover   Role = "approver"
	RoleEmployee   Role = "employee"
)

// GuardHasAdminComment is satisfied when the rejecting admin left a comment
const GuardHasAdminComment = "hasAdminComment"

// String returns the string representation of the document type
func (d DocumentType) String() string {
	return string(d)
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
