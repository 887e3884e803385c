package idl

// Instruction names.
const (
	Initialize           = "initialize"
	StartFocusSession    = "start_focus_session"
	CompleteFocusSession = "complete_focus_session"
	FailFocusSession     = "fail_focus_session"
	ClaimRewards         = "claim_rewards"
	UpdateTask           = "update_task"
	WithdrawFocusPool    = "withdraw_focus_pool"
	WithdrawFailurePool  = "withdraw_failure_pool"
)

// Account roles.
const (
	RoleGlobalState = "global_state"
	RoleVault       = "vault"
	RoleFocusPool   = "focus_pool_vault"
	RoleFailurePool = "failure_pool_vault"
	RoleUserState   = "user_state"
	RoleUser        = "user"
	RoleAuthority   = "authority"
	RoleRecipient   = "recipient"
)
