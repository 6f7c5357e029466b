package models

// All returns every model managed by the challenge core, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Challenge{},
		&Submission{},
		&PortfolioVote{},
		&RewardPayout{},
		&CreditTransaction{},
		&CreditWallet{},
	}
}
