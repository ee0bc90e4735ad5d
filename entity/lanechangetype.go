package entity

import "fmt"

// LaneChangeDecision 变道决策结果
type LaneChangeDecision int32

const (
	LC_NONE                   LaneChangeDecision = iota // 无可用规则（例如单车道）
	LC_STAY_IN_LANE                                     // 评估后保持当前车道
	LC_DISCRETIONARY_TO_LEFT                            // 自由向左变道
	LC_DISCRETIONARY_TO_RIGHT                           // 自由向右变道
	LC_MANDATORY_TO_LEFT                                // 强制向左变道
	LC_MANDATORY_TO_RIGHT                               // 强制向右变道
	LC_MANDATORY_STAY_IN_LANE                           // 已在强制目标车道，必须保持
	LC_OVERTAKE_VIA_PEER                                // 借对向车道超车
)

var lcDecisionNames = [...]string{
	"NONE",
	"STAY_IN_LANE",
	"DISCRETIONARY_TO_LEFT",
	"DISCRETIONARY_TO_RIGHT",
	"MANDATORY_TO_LEFT",
	"MANDATORY_TO_RIGHT",
	"MANDATORY_STAY_IN_LANE",
	"OVERTAKE_VIA_PEER",
}

func (d LaneChangeDecision) String() string {
	if d >= 0 && int(d) < len(lcDecisionNames) {
		return lcDecisionNames[d]
	}
	return fmt.Sprintf("LaneChangeDecision(%d)", int32(d))
}

// Direction 决策对应的变道方向
// 返回：TO_LEFT、TO_RIGHT或NO_CHANGE
// 说明：借道超车从1号车道进入0号车道，方向为TO_LEFT
func (d LaneChangeDecision) Direction() int32 {
	switch d {
	case LC_DISCRETIONARY_TO_LEFT, LC_MANDATORY_TO_LEFT, LC_OVERTAKE_VIA_PEER:
		return TO_LEFT
	case LC_DISCRETIONARY_TO_RIGHT, LC_MANDATORY_TO_RIGHT:
		return TO_RIGHT
	default:
		return NO_CHANGE
	}
}

// IsChange 是否需要执行变道
func (d LaneChangeDecision) IsChange() bool {
	return d.Direction() != NO_CHANGE
}

// LaneChangeResult 一次变道决策的完整结果
type LaneChangeResult struct {
	Decision LaneChangeDecision
	Target   ILane   // 目标车道，仅在Decision.IsChange()时有效
	Balance  float64 // 激励值（仅自由变道有意义）
}
