// internal/models/pipeline.go
package models

// MinorStatus 表示 Agent 1 对画面中是否出现未满16岁未成年人的判断
type MinorStatus string

const (
	MinorYes     MinorStatus = "yes"
	MinorNo      MinorStatus = "no"
	MinorUnclear MinorStatus = "unclear"
)

// Valid 判断取值是否在允许的枚举范围内
func (m MinorStatus) Valid() bool {
	switch m {
	case MinorYes, MinorNo, MinorUnclear:
		return true
	}
	return false
}

// AnalysisResult 表示 Agent 1（图像分析）的结构化输出
// 每次流水线运行只产生一份，生成后不再修改
type AnalysisResult struct {
	PeopleCount  int         `json:"people_count"`   // 画面中的人数，非负
	MinorUnder16 MinorStatus `json:"minor_under_16"` // yes / no / unclear
	NSFW         bool        `json:"nsfw"`           // 综合图像与用户提示词的成人内容判定
	Description  string      `json:"description"`    // 面向动作生成的简短画面描述
}

// RoutingDecision 表示内容路由的决策结果
// 只计算一次，之后只读，不在运行中途重算
type RoutingDecision struct {
	Agent       string `json:"agent"`                 // agent2（中性）/ agent3（成人）/ blocked
	GateApplied bool   `json:"gate_applied"`          // 安全门是否参与了本次决策
	GatePassed  *bool  `json:"gate_passed,omitempty"` // 安全门未参与时为 nil
	Reason      string `json:"reason"`                // 人类可读的决策说明
}

// EnhancementResult 表示增强 Agent 对单个片段的输出
type EnhancementResult struct {
	Prompt string `json:"prompt"` // 增强后的生成提示词，非空
	NSFW   bool   `json:"nsfw"`   // 增强 Agent 自己的成人内容复核
}

// TokenUsage 记录一次模型调用的 token 消耗
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add 累加另一份用量
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ModelPricing 每百万 token 的美元单价
type ModelPricing struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// CostInfo 单次模型调用的费用明细
type CostInfo struct {
	Model         string       `json:"model"`
	InputTokens   int          `json:"input_tokens"`
	OutputTokens  int          `json:"output_tokens"`
	TotalTokens   int          `json:"total_tokens"`
	InputCostUSD  float64      `json:"input_cost_usd"`
	OutputCostUSD float64      `json:"output_cost_usd"`
	TotalCostUSD  float64      `json:"total_cost_usd"`
	Pricing       ModelPricing `json:"pricing"`
}

// CostSummary 整次运行的费用汇总
type CostSummary struct {
	Analysis  *CostInfo  `json:"agent1"`    // Agent 1 调用费用
	Fragments []CostInfo `json:"fragments"` // 每个片段的调用费用，按时间顺序
	Total     CostTotal  `json:"total"`
}

// CostTotal 所有调用的合计
type CostTotal struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// AddCost 将一次调用计入汇总
func (t *CostTotal) AddCost(c CostInfo) {
	t.InputTokens += c.InputTokens
	t.OutputTokens += c.OutputTokens
	t.TotalTokens += c.TotalTokens
	t.TotalCostUSD += c.TotalCostUSD
}

// RequestDetails 记录一次模型调用的请求与响应快照（调试界面使用）
// 图像数据在快照中被截断，避免响应体积膨胀
type RequestDetails struct {
	Request  RequestSnapshot  `json:"request"`
	Response ResponseSnapshot `json:"response"`
}

// RequestSnapshot 请求侧快照
type RequestSnapshot struct {
	Endpoint   string                 `json:"endpoint"`
	Parameters map[string]interface{} `json:"parameters"`
	Messages   []MessageSnapshot      `json:"messages"`
}

// MessageSnapshot 单条消息快照，Content 为文本或分段内容
type MessageSnapshot struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ResponseSnapshot 响应侧快照
type ResponseSnapshot struct {
	RawContent string      `json:"raw_content"`
	Parsed     interface{} `json:"parsed"`
	Usage      TokenUsage  `json:"usage"`
}

// Fragment 表示输出视频的一个时间片段
// 片段 i>0 在构造续写上下文时按值读取片段 i-1 的提示词文本，
// 片段之间不持有结构性引用
type Fragment struct {
	Index     int               `json:"index"`      // 0 起始
	TimeStart int               `json:"time_start"` // 秒，含
	TimeEnd   int               `json:"time_end"`   // 秒，不含
	TimeRange string            `json:"time_range"` // 如 "0-5 sec"
	AgentUsed string            `json:"agent_used"` // agent2 / agent3
	Result    EnhancementResult `json:"result"`
	Details   *RequestDetails   `json:"details,omitempty"`
	Usage     TokenUsage        `json:"usage"`
	Cost      CostInfo          `json:"cost"`
	DemoNote  string            `json:"_demo_note,omitempty"` // 片段 2 起提示生产环境应换用上一段视频的末帧
}

// PipelineResult 整次运行的最终结果，组装完成后不再修改
// 被安全门拦截时 Fragments 为空，Blocked 为 true
type PipelineResult struct {
	RunID         string          `json:"run_id"`
	Duration      int             `json:"duration"`      // 秒
	NumFragments  int             `json:"num_fragments"` // duration / fragment_length
	Analysis      AnalysisResult  `json:"agent1_result"`
	Details       *RequestDetails `json:"agent1_details,omitempty"`
	Routing       RoutingDecision `json:"routing"`
	Fragments     []Fragment      `json:"fragments"` // 按时间顺序
	Costs         *CostSummary    `json:"costs,omitempty"`
	Blocked       bool            `json:"blocked,omitempty"`
	BlockedReason string          `json:"blocked_reason,omitempty"`
}
