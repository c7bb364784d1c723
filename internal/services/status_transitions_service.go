package services

import "ozergarant/internal/models"

// Допустимые переходы статусов сделки.
// cancelled/disputed есть в таблице, но их триггеры пока заглушки.
var DealTransitions = map[models.DealStatus]map[models.DealStatus]bool{
	models.DealCreated:        {models.DealJoined: true, models.DealCancelled: true, models.DealDisputed: true},
	models.DealJoined:         {models.DealPaymentPending: true, models.DealCancelled: true, models.DealDisputed: true},
	models.DealPaymentPending: {models.DealCompleted: true, models.DealCancelled: true, models.DealDisputed: true},
	models.DealCompleted:      {},
	models.DealCancelled:      {},
	models.DealDisputed:       {},
}

// Шаги диалога. В create_role/join_password можно войти из любого шага:
// новая команда перезаписывает незаконченный диалог.
var WorkflowTransitions = map[models.WorkflowAction]map[models.WorkflowAction]bool{
	models.ActionIdle:           {models.ActionCreateRole: true, models.ActionJoinPassword: true},
	models.ActionCreateRole:     {models.ActionCreateAmount: true, models.ActionCreateRole: true, models.ActionJoinPassword: true},
	models.ActionCreateAmount:   {models.ActionCreateTerms: true, models.ActionCreateRole: true, models.ActionJoinPassword: true},
	models.ActionCreateTerms:    {models.ActionCreatePassword: true, models.ActionCreateRole: true, models.ActionJoinPassword: true},
	models.ActionCreatePassword: {models.ActionCreateRole: true, models.ActionJoinPassword: true},
	models.ActionJoinPassword:   {models.ActionCreateRole: true, models.ActionJoinPassword: true},
}

// canTransition — нет записи в таблице, значит переход запрещён.
func canTransition[S ~string](current, to S, table map[S]map[S]bool) bool {
	nexts, ok := table[current]
	if !ok {
		return false
	}
	return nexts[to]
}

func CanTransitionDeal(from, to models.DealStatus) bool {
	return canTransition(from, to, DealTransitions)
}

// CanTransitionWorkflow — возврат в idle разрешён всегда (отмена/завершение).
func CanTransitionWorkflow(from, to models.WorkflowAction) bool {
	if to == models.ActionIdle {
		return true
	}
	return canTransition(from, to, WorkflowTransitions)
}
