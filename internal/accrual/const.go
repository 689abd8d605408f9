package accrual

// RewardNum is the number of reward streams a pool can carry.
const RewardNum = 3
