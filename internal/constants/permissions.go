package constants

const (
	ViewData        = "view_data"
	ManageBuildings = "manage_buildings"
	ManageCharges   = "manage_charges"
	GenerateCalls   = "generate_calls"
	RecordPayments  = "record_payments"
)
