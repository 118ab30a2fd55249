package dm

// OutcomeStatus 动作执行结果
type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// 跳过与失败原因
const (
	ReasonCharacterNotFound = "character_not_found"
	ReasonOtherCampaign     = "character_in_other_campaign"
	ReasonNoSlotAvailable   = "no_slot_available"
	ReasonVersionConflict   = "version_conflict"
	ReasonPersistence       = "persistence_error"
	ReasonCampaignNotFound  = "campaign_not_found"
	ReasonNoLogUpdate       = "no_log_update"
	ReasonCanceled          = "canceled"
)

// ActionOutcome 单个动作的执行结果
type ActionOutcome struct {
	Index       int           `json:"index"`
	Type        ActionType    `json:"type"`
	CharacterID string        `json:"character_id"`
	Status      OutcomeStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Attempts    int           `json:"attempts"`
	Error       string        `json:"error,omitempty"`
	Err         error         `json:"-"`
}

// LogOutcome 日志追加结果
type LogOutcome struct {
	Status   OutcomeStatus `json:"status"`
	Entry    *LogEntry     `json:"entry,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
}

// ApplyResult 一批动作与日志追加的完整结果
type ApplyResult struct {
	Outcomes []ActionOutcome `json:"outcomes"`
	Log      *LogOutcome     `json:"log,omitempty"`
}

func (r *ApplyResult) count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Applied 成功数量
func (r *ApplyResult) Applied() int { return r.count(OutcomeApplied) }

// Skipped 跳过数量
func (r *ApplyResult) Skipped() int { return r.count(OutcomeSkipped) }

// Failed 失败数量
func (r *ApplyResult) Failed() int { return r.count(OutcomeFailed) }
