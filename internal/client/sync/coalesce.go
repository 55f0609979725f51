package sync

import (
	"sort"
	"time"

	"github.com/iudanet/offsync/internal/models"
)

// CoalescedGroup результат коалесценции очереди одной записи:
// минимальный набор операций, сохраняющий намерение, плюс точный
// набор исходных ID для оптимистичного удаления после подтверждения.
type CoalescedGroup struct {
	// Ops минимальный эквивалентный набор: не более одного delete,
	// или одного create, или одного set плюс по одному increment
	// на каждое аддитивное поле
	Ops []*models.Operation

	// SourceIDs все свернутые исходные операции в порядке очереди
	SourceIDs []uint64

	// EnqueuedAt самая ранняя постановка среди исходных операций
	EnqueuedAt time.Time

	// LastEnqueuedAt самая поздняя постановка: момент последней
	// локальной правки, он и уходит на сервер как updated_at
	LastEnqueuedAt time.Time

	// Retries / NextRetryAt максимум среди исходных операций:
	// состояние backoff переживает коалесценцию
	Retries     int
	NextRetryAt time.Time
}

// Empty сообщает, что группе нечего отправлять (например create,
// аннигилированный последующим delete).
func (g *CoalescedGroup) Empty() bool {
	return len(g.Ops) == 0
}

// Eligible сообщает, истёк ли backoff группы к моменту now.
func (g *CoalescedGroup) Eligible(now time.Time) bool {
	return g.NextRetryAt.IsZero() || !g.NextRetryAt.After(now)
}

// Coalesce сжимает упорядоченный список операций одной записи в
// минимальный набор, сохраняющий намерение. Правила, в фиксированном
// порядке:
//  1. delete отбрасывает всё до себя; если до него был ещё не
//     отправленный create - отбрасываются оба (запись никогда не
//     существовала на сервере, отправлять нечего)
//  2. create впитывает последующие set'ы в свой payload пополево;
//     increment'ы по несуществующей на сервере записи складываются
//     прямо в payload (базы на сервере нет, дельта и есть значение)
//  3. increment'ы одного поля сворачиваются в один, дельты суммируются
//  4. set'ы одного поля сворачиваются в последнее значение
//  5. set'ы разных полей сливаются в один операцию-payload;
//     increment'ы никогда не сворачиваются в set, чтобы сервер мог
//     применить их аддитивно
//  6. результат наследует самый ранний EnqueuedAt и максимальные
//     Retries/NextRetryAt исходных операций
func Coalesce(ops []*models.Operation) CoalescedGroup {
	group := CoalescedGroup{}
	if len(ops) == 0 {
		return group
	}

	for _, op := range ops {
		group.SourceIDs = append(group.SourceIDs, op.ID)
		if group.EnqueuedAt.IsZero() || op.EnqueuedAt.Before(group.EnqueuedAt) {
			group.EnqueuedAt = op.EnqueuedAt
		}
		if op.EnqueuedAt.After(group.LastEnqueuedAt) {
			group.LastEnqueuedAt = op.EnqueuedAt
		}
		if op.Retries > group.Retries {
			group.Retries = op.Retries
		}
		if op.NextRetryAt.After(group.NextRetryAt) {
			group.NextRetryAt = op.NextRetryAt
		}
	}

	table := ops[0].Table
	entityID := ops[0].EntityID

	// Правило 1: последний delete главенствует над префиксом
	if idx := lastDeleteIndex(ops); idx >= 0 {
		hadCreate := false
		for _, op := range ops[:idx] {
			if op.Type == models.OpCreate {
				hadCreate = true
				break
			}
		}

		// Операции после delete (пересоздание) коалесцируются отдельно
		suffix := Coalesce(ops[idx+1:])

		if !hadCreate {
			group.Ops = append(group.Ops, &models.Operation{
				Table:       table,
				EntityID:    entityID,
				Type:        models.OpDelete,
				EnqueuedAt:  group.EnqueuedAt,
				Retries:     group.Retries,
				NextRetryAt: group.NextRetryAt,
			})
		}

		group.Ops = append(group.Ops, suffix.Ops...)
		return group
	}

	var (
		createPayload map[string]any
		setPayload    = make(map[string]any)
		increments    = make(map[string]float64)
	)

	for _, op := range ops {
		switch op.Type {
		case models.OpCreate:
			createPayload = make(map[string]any)
			if fields, ok := op.Value.(map[string]any); ok {
				for k, v := range fields {
					createPayload[k] = v
				}
			}

		case models.OpSet:
			if createPayload != nil {
				// Правило 2: set впитывается в payload create
				createPayload[op.Field] = op.Value
				continue
			}
			setPayload[op.Field] = op.Value

		case models.OpIncrement:
			if createPayload != nil {
				base := 0.0
				if existing, ok := createPayload[op.Field]; ok {
					base = toFloat(existing)
				}
				createPayload[op.Field] = base + op.Delta()
				continue
			}
			increments[op.Field] += op.Delta()
		}
	}

	if createPayload != nil {
		group.Ops = append(group.Ops, &models.Operation{
			Table:       table,
			EntityID:    entityID,
			Type:        models.OpCreate,
			Value:       createPayload,
			EnqueuedAt:  group.EnqueuedAt,
			Retries:     group.Retries,
			NextRetryAt: group.NextRetryAt,
		})
		return group
	}

	if len(setPayload) > 0 {
		group.Ops = append(group.Ops, &models.Operation{
			Table:       table,
			EntityID:    entityID,
			Type:        models.OpSet,
			Value:       setPayload,
			EnqueuedAt:  group.EnqueuedAt,
			Retries:     group.Retries,
			NextRetryAt: group.NextRetryAt,
		})
	}

	// Детерминированный порядок increment-операций
	fields := make([]string, 0, len(increments))
	for field := range increments {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		group.Ops = append(group.Ops, &models.Operation{
			Table:       table,
			EntityID:    entityID,
			Type:        models.OpIncrement,
			Field:       field,
			Value:       increments[field],
			EnqueuedAt:  group.EnqueuedAt,
			Retries:     group.Retries,
			NextRetryAt: group.NextRetryAt,
		})
	}

	return group
}

// lastDeleteIndex возвращает индекс последнего delete или -1
func lastDeleteIndex(ops []*models.Operation) int {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Type == models.OpDelete {
			return i
		}
	}
	return -1
}
