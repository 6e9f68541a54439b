package api

import "meterbackend/models"

// DomainUsageEventToAPIUsageEvent converts a domain UsageEvent model to an API UsageEventModel
func DomainUsageEventToAPIUsageEvent(domainEvent *models.UsageEvent) *UsageEventModel {
	if domainEvent == nil {
		return nil
	}

	return &UsageEventModel{
		ID:               domainEvent.ID,
		ProjectID:        domainEvent.ProjectID,
		Provider:         domainEvent.Provider,
		Model:            domainEvent.Model,
		InputTokens:      domainEvent.InputTokens,
		OutputTokens:     domainEvent.OutputTokens,
		TotalTokens:      domainEvent.TotalTokens,
		CostUSD:          domainEvent.CostUSD,
		RequestTimestamp: domainEvent.RequestTimestamp,
		CreatedAt:        domainEvent.CreatedAt,
	}
}

// DomainUsageAggregateToAPIUsageAggregate converts a domain UsageAggregate model to an API UsageAggregateModel
func DomainUsageAggregateToAPIUsageAggregate(domainAggregate *models.UsageAggregate) *UsageAggregateModel {
	if domainAggregate == nil {
		return nil
	}

	return &UsageAggregateModel{
		GroupKey:     domainAggregate.GroupKey,
		TotalCostUSD: domainAggregate.TotalCostUSD,
		TotalTokens:  domainAggregate.TotalTokens,
		RequestCount: domainAggregate.RequestCount,
	}
}

// DomainProjectToAPIProject converts a domain Project model to an API ProjectModel
func DomainProjectToAPIProject(domainProject *models.Project) *ProjectModel {
	if domainProject == nil {
		return nil
	}

	return &ProjectModel{
		ID:        domainProject.ID,
		Name:      domainProject.Name,
		CreatedAt: domainProject.CreatedAt,
		UpdatedAt: domainProject.UpdatedAt,
	}
}

// DomainProjectBudgetToAPIProjectBudget converts a domain ProjectBudget model to an API ProjectBudgetModel
func DomainProjectBudgetToAPIProjectBudget(domainBudget *models.ProjectBudget) *ProjectBudgetModel {
	if domainBudget == nil {
		return nil
	}

	model := &ProjectBudgetModel{
		ProjectID:                   domainBudget.ProjectID,
		BudgetAlertThresholdPercent: domainBudget.BudgetAlertThresholdPercent,
		AlertEmail:                  domainBudget.AlertEmail,
		LastBudgetAlertSent:         domainBudget.LastBudgetAlertSent,
		UpdatedAt:                   domainBudget.UpdatedAt,
	}
	if domainBudget.BudgetThresholdUSD.Valid {
		threshold := domainBudget.BudgetThresholdUSD.Decimal
		model.BudgetThresholdUSD = &threshold
	}
	return model
}

// DomainBudgetStatusToAPIBudgetStatus converts a domain BudgetStatus model to an API BudgetStatusModel
func DomainBudgetStatusToAPIBudgetStatus(domainStatus *models.BudgetStatus) *BudgetStatusModel {
	if domainStatus == nil {
		return nil
	}

	return &BudgetStatusModel{
		ProjectID:      domainStatus.ProjectID,
		State:          string(domainStatus.State),
		CurrentCostUSD: domainStatus.CurrentCostUSD,
		ThresholdUSD:   domainStatus.ThresholdUSD,
		PercentUsed:    domainStatus.PercentUsed,
		ShouldAlert:    domainStatus.ShouldAlert,
	}
}

// DomainAlertResultToAPIAlertResult converts a domain AlertResult model to an API AlertResultModel
func DomainAlertResultToAPIAlertResult(domainResult *models.AlertResult) *AlertResultModel {
	if domainResult == nil {
		return nil
	}

	return &AlertResultModel{
		BudgetStatusModel:    *DomainBudgetStatusToAPIBudgetStatus(&domainResult.BudgetStatus),
		AlertSent:            domainResult.AlertSent,
		SuppressedByCooldown: domainResult.SuppressedByCooldown,
	}
}

// DomainAlertOutcomeToAPIAlertOutcome converts a domain ProjectAlertOutcome model to an API ProjectAlertOutcomeModel
func DomainAlertOutcomeToAPIAlertOutcome(domainOutcome *models.ProjectAlertOutcome) *ProjectAlertOutcomeModel {
	if domainOutcome == nil {
		return nil
	}

	model := &ProjectAlertOutcomeModel{
		ProjectID: domainOutcome.ProjectID,
		Result:    DomainAlertResultToAPIAlertResult(domainOutcome.Result),
	}
	if domainOutcome.Err != nil {
		model.Error = domainOutcome.Err.Error()
	}
	return model
}
