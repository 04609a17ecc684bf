package service

// RunRequest triggers a scheduled run, optionally for one group.
type RunRequest struct {
	GroupID string `json:"group_id,omitempty" validate:"omitempty,uuid"`
}

// ContributionRunResponse summarizes a contribution run.
type ContributionRunResponse struct {
	Success    bool     `json:"success"`
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// PayoutRunResponse summarizes a payout run.
type PayoutRunResponse struct {
	Success          bool     `json:"success"`
	Processed        int      `json:"processed"`
	PayoutsInitiated int      `json:"payouts_initiated"`
	Skipped          int      `json:"skipped"`
	Failed           int      `json:"failed"`
	Errors           []string `json:"errors"`
}

func (r *ContributionRunResponse) LogAttrs() []any {
	return []any{"processed", r.Processed, "successful", r.Successful, "skipped", r.Skipped, "failed", r.Failed}
}

func (r *PayoutRunResponse) LogAttrs() []any {
	return []any{"processed", r.Processed, "initiated", r.PayoutsInitiated, "skipped", r.Skipped, "failed", r.Failed}
}

type ChargeContributionRequest struct {
	MembershipID string `json:"membership_id" validate:"required,uuid"`
	InstrumentID string `json:"instrument_id,omitempty" validate:"omitempty,uuid"`
}

type ChargeContributionResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (r *ChargeContributionResponse) LogAttrs() []any {
	attrs := []any{"status", r.Status}
	if r.Reference != "" {
		attrs = append(attrs, "reference", r.Reference)
	}
	if r.Error != "" {
		attrs = append(attrs, "failed", 1, "charge_error", r.Error)
	}
	return attrs
}

type GetCycleStatusRequest struct {
	GroupID string `json:"group_id" validate:"required,uuid"`
}

type CycleStatusResponse struct {
	GroupID        string   `json:"group_id"`
	GroupStatus    string   `json:"group_status"`
	CurrentCycle   int      `json:"current_cycle"`
	ActiveMembers  int      `json:"active_members"`
	Contributed    []string `json:"contributed"`
	Outstanding    []string `json:"outstanding"`
	Complete       bool     `json:"complete"`
	NextRecipient  string   `json:"next_recipient,omitempty"`
	RecipientError string   `json:"recipient_error,omitempty"`
	GrossAmount    int64    `json:"gross_amount"`
	FeeAmount      int64    `json:"fee_amount"`
	NetAmount      int64    `json:"net_amount"`
	PayoutStatus   string   `json:"payout_status,omitempty"`
	PayoutRef      string   `json:"payout_reference,omitempty"`
	FailedPayouts  int      `json:"failed_payouts"`
}

type ResetRetryCountRequest struct {
	MembershipID string `json:"membership_id" validate:"required,uuid"`
}

type ResetRetryCountResponse struct {
	MembershipID string `json:"membership_id"`
}
