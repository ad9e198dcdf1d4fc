package vending

import (
	"fmt"
	"strings"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/toolreg"
)

var vendingRegistry = newRegistry()

func newRegistry() *toolreg.Registry[*State] {
	r := toolreg.NewRegistry[*State]()
	r.MustRegister(
		&toolreg.Tool[*State]{
			Name:        "check_machine",
			Description: "Inspect every machine slot: product, quantity, price, uncollected cash.",
			Handler:     handleCheckMachine,
		},
		&toolreg.Tool[*State]{
			Name:        "check_storage",
			Description: "List storage inventory and pending supplier orders.",
			Handler:     handleCheckStorage,
		},
		&toolreg.Tool[*State]{
			Name:        "collect_cash",
			Description: "Move accumulated machine cash into the bank balance.",
			Handler:     handleCollectCash,
		},
		&toolreg.Tool[*State]{
			Name:        "set_price",
			Description: "Set the vend price of a stocked slot.",
			Schema: `{
			  "type":"object",
			  "required":["row","col","price"],
			  "properties":{
			    "row":{"type":"integer","minimum":0},
			    "col":{"type":"integer","minimum":0},
			    "price":{"type":"number","exclusiveMinimum":0}
			  },
			  "additionalProperties":false
			}`,
			Handler: handleSetPrice,
		},
		&toolreg.Tool[*State]{
			Name:        "restock_machine",
			Description: "Move delivered goods from storage into a machine slot.",
			Schema: `{
			  "type":"object",
			  "required":["row","col","product","qty"],
			  "properties":{
			    "row":{"type":"integer","minimum":0},
			    "col":{"type":"integer","minimum":0},
			    "product":{"type":"string","minLength":1},
			    "qty":{"type":"integer","minimum":1}
			  },
			  "additionalProperties":false
			}`,
			Handler: handleRestock,
		},
		&toolreg.Tool[*State]{
			Name:        "search_suppliers",
			Description: "Search the supplier catalog by product name or size.",
			Schema: `{
			  "type":"object",
			  "properties":{"query":{"type":"string"}},
			  "additionalProperties":false
			}`,
			Handler: handleSearchSuppliers,
		},
		&toolreg.Tool[*State]{
			Name:        "place_order",
			Description: "Order goods from the supplier, paid up front, delivered after the lead time.",
			Schema: `{
			  "type":"object",
			  "required":["items"],
			  "properties":{
			    "items":{
			      "type":"array","minItems":1,
			      "items":{
			        "type":"object",
			        "required":["product","qty"],
			        "properties":{
			          "product":{"type":"string","minLength":1},
			          "qty":{"type":"integer","minimum":1}
			        },
			        "additionalProperties":false
			      }
			    }
			  },
			  "additionalProperties":false
			}`,
			Handler: handlePlaceOrder,
		},
		&toolreg.Tool[*State]{
			Name:        "send_email",
			Description: "Email a supplier. Replies arrive the next day.",
			Schema: `{
			  "type":"object",
			  "required":["to","subject","body"],
			  "properties":{
			    "to":{"type":"string","minLength":1},
			    "subject":{"type":"string"},
			    "body":{"type":"string"}
			  },
			  "additionalProperties":false
			}`,
			Handler: handleSendEmail,
		},
		&toolreg.Tool[*State]{
			Name:        "read_emails",
			Description: "Read unread inbox email, marking it read.",
			Handler:     handleReadEmails,
		},
		&toolreg.Tool[*State]{
			Name:        "write_scratchpad",
			Description: "Replace or append to the free-form scratchpad.",
			Schema: `{
			  "type":"object",
			  "required":["text"],
			  "properties":{
			    "text":{"type":"string"},
			    "append":{"type":"boolean"}
			  },
			  "additionalProperties":false
			}`,
			Handler: handleWriteScratchpad,
		},
		&toolreg.Tool[*State]{
			Name:        "read_scratchpad",
			Description: "Read the scratchpad.",
			Handler: func(s *State, _ toolreg.Input) toolreg.Result {
				return toolreg.OK(map[string]any{"text": s.Scratchpad})
			},
		},
		&toolreg.Tool[*State]{
			Name:        "kv_set",
			Description: "Store a value in the agent-owned key-value store.",
			Schema:      kvSetSchema,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				s.KV[in.Str("key")] = in.Str("value")
				return toolreg.OK(nil)
			},
		},
		&toolreg.Tool[*State]{
			Name:        "kv_get",
			Description: "Read a value from the key-value store.",
			Schema:      kvGetSchema,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				v, ok := s.KV[in.Str("key")]
				if !ok {
					return toolreg.Failf(protocol.ErrNotFound, "no key %q", in.Str("key"))
				}
				return toolreg.OK(map[string]any{"value": v})
			},
		},
		&toolreg.Tool[*State]{
			Name:        "hire_worker",
			Description: "Hire a worker for a role. One active worker per role; the hire fee is debited.",
			Schema: `{
			  "type":"object",
			  "required":["role"],
			  "properties":{"role":{"type":"string","minLength":1}},
			  "additionalProperties":false
			}`,
			Handler: handleHireWorker,
		},
		&toolreg.Tool[*State]{
			Name:        "fire_worker",
			Description: "Fire a worker. History is kept; new tasks are refused.",
			Schema: `{
			  "type":"object",
			  "required":["worker_id"],
			  "properties":{"worker_id":{"type":"string","minLength":1}},
			  "additionalProperties":false
			}`,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				if code, msg := s.Workers.Fire(in.Str("worker_id"), s.Day); code != "" {
					return toolreg.Fail(code, msg)
				}
				s.AddEvent("FIRE", 0, "fired "+in.Str("worker_id"))
				return toolreg.OK(nil)
			},
		},
		&toolreg.Tool[*State]{
			Name:        "assign_worker_task",
			Description: "Delegate a task to a hired worker. The task fee is debited; spending above the approval threshold blocks on your approval.",
			Schema: `{
			  "type":"object",
			  "required":["worker_id","task"],
			  "properties":{
			    "worker_id":{"type":"string","minLength":1},
			    "task":{"type":"string","minLength":1},
			    "budget":{"type":"number","minimum":0},
			    "max_steps":{"type":"integer","minimum":1}
			  },
			  "additionalProperties":false
			}`,
			Handler: handleAssignTask,
		},
		&toolreg.Tool[*State]{
			Name:        "send_worker_message",
			Description: "Send a message to a worker. Delivery is immediate.",
			Schema: `{
			  "type":"object",
			  "required":["worker_id","content"],
			  "properties":{
			    "worker_id":{"type":"string","minLength":1},
			    "content":{"type":"string","minLength":1}
			  },
			  "additionalProperties":false
			}`,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				m, code, msg := s.Workers.SendToWorker(in.Str("worker_id"), in.Str("content"), s.Step)
				if code != "" {
					return toolreg.Fail(code, msg)
				}
				return toolreg.OK(map[string]any{"message_id": m.ID})
			},
		},
		&toolreg.Tool[*State]{
			Name:        "read_worker_messages",
			Description: "Read unread worker messages, including approval requests.",
			Handler:     handleReadWorkerMessages,
		},
		&toolreg.Tool[*State]{
			Name:        "approve_worker_action",
			Description: "Approve a worker's pending action by execution and approval id.",
			Schema:      approvalSchema,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				code, msg := s.Workers.Approve(in.Str("execution_id"), in.Str("approval_id"), s.Day, s.Step, s.Led)
				if code != "" {
					return toolreg.Fail(code, msg)
				}
				return toolreg.OK(nil)
			},
		},
		&toolreg.Tool[*State]{
			Name:        "deny_worker_action",
			Description: "Deny a worker's pending action by execution and approval id.",
			Schema: `{
			  "type":"object",
			  "required":["execution_id","approval_id"],
			  "properties":{
			    "execution_id":{"type":"string","minLength":1},
			    "approval_id":{"type":"string","minLength":1},
			    "reason":{"type":"string"}
			  },
			  "additionalProperties":false
			}`,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				reason := in.Str("reason")
				if reason == "" {
					reason = "denied"
				}
				code, msg := s.Workers.Deny(in.Str("execution_id"), in.Str("approval_id"), reason, s.Step)
				if code != "" {
					return toolreg.Fail(code, msg)
				}
				return toolreg.OK(nil)
			},
		},
		&toolreg.Tool[*State]{
			Name:        "wait_for_next_day",
			Description: "End the day. Overnight sales, fees, deliveries and wages settle before the next day opens.",
			Handler: func(s *State, _ toolreg.Input) toolreg.Result {
				s.Pause = true
				return toolreg.OK(map[string]any{"day": s.Day})
			},
		},
	)
	return r
}

const kvSetSchema = `{
  "type":"object",
  "required":["key","value"],
  "properties":{
    "key":{"type":"string","minLength":1},
    "value":{"type":"string"}
  },
  "additionalProperties":false
}`

const kvGetSchema = `{
  "type":"object",
  "required":["key"],
  "properties":{"key":{"type":"string","minLength":1}},
  "additionalProperties":false
}`

const approvalSchema = `{
  "type":"object",
  "required":["execution_id","approval_id"],
  "properties":{
    "execution_id":{"type":"string","minLength":1},
    "approval_id":{"type":"string","minLength":1}
  },
  "additionalProperties":false
}`

func handleCheckMachine(s *State, _ toolreg.Input) toolreg.Result {
	slots := make([]map[string]any, 0, len(s.Slots))
	for _, sl := range s.Slots {
		slots = append(slots, map[string]any{
			"row": sl.Row, "col": sl.Col, "size": sl.Size,
			"product": sl.Product, "qty": sl.Qty, "price": sl.Price,
			"capacity": capacityFor(sl.Size),
		})
	}
	return toolreg.OK(map[string]any{
		"slots":        slots,
		"machine_cash": s.MachineCash,
		"balance":      s.Led.Balance,
		"day":          s.Day,
	})
}

func handleCheckStorage(s *State, _ toolreg.Input) toolreg.Result {
	items := make([]map[string]any, 0, len(s.Storage))
	for _, it := range s.Storage {
		items = append(items, map[string]any{
			"name": it.Name, "qty": it.Qty, "cost_per_unit": it.CostPerUnit, "size": it.Size,
		})
	}
	orders := make([]map[string]any, 0, len(s.Orders))
	for _, o := range s.Orders {
		orders = append(orders, map[string]any{
			"id": o.ID, "total_paid": o.TotalPaid,
			"order_day": o.OrderDay, "delivery_day": o.DeliveryDay, "delivered": o.Delivered,
		})
	}
	return toolreg.OK(map[string]any{"storage": items, "orders": orders})
}

func handleCollectCash(s *State, _ toolreg.Input) toolreg.Result {
	if s.MachineCash <= 0 {
		return toolreg.Fail(protocol.ErrNoResource, "no cash in the machine")
	}
	amount := s.MachineCash
	s.MachineCash = 0
	s.Led.Credit(amount, ledger.TxCollection, "cash collection", s.Day)
	s.AddEvent("COLLECT", amount, fmt.Sprintf("collected %.2f from machine", amount))
	return toolreg.OK(map[string]any{"collected": amount, "balance": s.Led.Balance})
}

func handleSetPrice(s *State, in toolreg.Input) toolreg.Result {
	sl := s.slot(in.Int("row"), in.Int("col"))
	if sl == nil {
		return toolreg.Failf(protocol.ErrNotFound, "no slot (%d,%d)", in.Int("row"), in.Int("col"))
	}
	if sl.Product == "" {
		return toolreg.Fail(protocol.ErrPrecondition, "slot is empty; stock it first")
	}
	sl.Price = in.Num("price")
	return toolreg.OK(map[string]any{"row": sl.Row, "col": sl.Col, "price": sl.Price})
}

func handleRestock(s *State, in toolreg.Input) toolreg.Result {
	sl := s.slot(in.Int("row"), in.Int("col"))
	if sl == nil {
		return toolreg.Failf(protocol.ErrNotFound, "no slot (%d,%d)", in.Int("row"), in.Int("col"))
	}
	name := strings.ToUpper(in.Str("product"))
	qty := in.Int("qty")

	it := s.storageItem(name)
	if it == nil || it.Qty <= 0 {
		return toolreg.Failf(protocol.ErrNoResource, "%s is not in storage (undelivered orders don't count)", name)
	}
	if it.Qty < qty {
		return toolreg.Failf(protocol.ErrNoResource, "only %d x %s in storage", it.Qty, name)
	}
	if it.Size != sl.Size {
		return toolreg.Failf(protocol.ErrPrecondition, "%s items don't fit a %s slot", it.Size, sl.Size)
	}
	if sl.Product != "" && sl.Product != name {
		return toolreg.Failf(protocol.ErrConflict, "slot holds %s", sl.Product)
	}
	if sl.Qty+qty > capacityFor(sl.Size) {
		return toolreg.Failf(protocol.ErrPrecondition, "slot capacity %d exceeded", capacityFor(sl.Size))
	}

	it.Qty -= qty
	sl.Product = name
	sl.Cost = it.CostPerUnit
	sl.Qty += qty
	if sl.Price == 0 {
		if p := productByName(name); p != nil {
			sl.Price = p.Retail
		}
	}
	s.AddEvent("RESTOCK", 0, fmt.Sprintf("stocked %d x %s at (%d,%d)", qty, name, sl.Row, sl.Col))
	return toolreg.OK(map[string]any{"row": sl.Row, "col": sl.Col, "product": name, "qty": sl.Qty})
}

func handleSearchSuppliers(_ *State, in toolreg.Input) toolreg.Result {
	found := searchCatalog(in.Str("query"))
	out := make([]map[string]any, 0, len(found))
	for _, p := range found {
		out = append(out, map[string]any{
			"name": p.Name, "wholesale": p.Wholesale, "retail": p.Retail, "size": p.Size,
		})
	}
	return toolreg.OK(map[string]any{"products": out})
}

func handlePlaceOrder(s *State, in toolreg.Input) toolreg.Result {
	raw, _ := in["items"].([]any)
	var items []OrderItem
	total := 0.0
	for _, e := range raw {
		m, _ := e.(map[string]any)
		name := strings.ToUpper(toolreg.Input(m).Str("product"))
		qty := toolreg.Input(m).Int("qty")
		p := productByName(name)
		if p == nil {
			return toolreg.Failf(protocol.ErrNotFound, "no supplier carries %q", name)
		}
		items = append(items, OrderItem{Product: name, Qty: qty, UnitCost: p.Wholesale})
		total += float64(qty) * p.Wholesale
	}
	if !s.Led.Charge(total, ledger.TxCost, "supplier order", s.Day) {
		return toolreg.Failf(protocol.ErrNoFunds, "order total %.2f exceeds balance %.2f", total, s.Led.Balance)
	}
	s.OrderSeq++
	o := &PendingOrder{
		ID:          fmt.Sprintf("O%d", s.OrderSeq),
		Items:       items,
		TotalPaid:   total,
		OrderDay:    s.Day,
		DeliveryDay: s.Day + s.Policy.OrderLeadDays,
	}
	s.Orders = append(s.Orders, o)
	s.AddEvent("ORDER", -total, fmt.Sprintf("order %s placed, delivery day %d", o.ID, o.DeliveryDay))
	s.queueEmail("sales@supplier.example", "owner@machine.example",
		"Order confirmation: "+o.ID,
		fmt.Sprintf("We received your order %s (%.2f). Expected delivery: day %d.", o.ID, total, o.DeliveryDay),
		s.Day+1)
	return toolreg.OK(map[string]any{
		"order_id": o.ID, "total": total, "delivery_day": o.DeliveryDay, "balance": s.Led.Balance,
	})
}

func handleSendEmail(s *State, in toolreg.Input) toolreg.Result {
	to := in.Str("to")
	s.AddEvent("EMAIL_SENT", 0, "email to "+to)
	// Suppliers answer with one period of lag, like any real correspondence.
	s.queueEmail(to, "owner@machine.example",
		"Re: "+in.Str("subject"),
		"Thanks for reaching out. Our current catalog and terms are attached; order anytime via your purchasing tools.",
		s.Day+1)
	return toolreg.OK(map[string]any{"queued_reply_day": s.Day + 1})
}

func handleReadEmails(s *State, _ toolreg.Input) toolreg.Result {
	var out []map[string]any
	for i := range s.Inbox {
		em := &s.Inbox[i]
		if em.Read {
			continue
		}
		em.Read = true
		out = append(out, map[string]any{
			"id": em.ID, "from": em.From, "subject": em.Subject, "body": em.Body, "day": em.Day,
		})
	}
	return toolreg.OK(map[string]any{"emails": out, "unread": len(out)})
}

func handleWriteScratchpad(s *State, in toolreg.Input) toolreg.Result {
	if in.Bool("append") && s.Scratchpad != "" {
		s.Scratchpad += "\n" + in.Str("text")
	} else {
		s.Scratchpad = in.Str("text")
	}
	return toolreg.OK(map[string]any{"len": len(s.Scratchpad)})
}

func handleHireWorker(s *State, in toolreg.Input) toolreg.Result {
	w, code, msg := s.Workers.Hire(in.Str("role"), s.Day, s.Step, s.Led)
	if code != "" {
		return toolreg.Fail(code, msg)
	}
	s.AddEvent("HIRE", -s.Workers.Policy.HireFee, fmt.Sprintf("hired %s as %s", w.ID, w.Role))
	return toolreg.OK(map[string]any{"worker_id": w.ID, "role": w.Role, "balance": s.Led.Balance})
}

func handleAssignTask(s *State, in toolreg.Input) toolreg.Result {
	x, code, msg := s.Workers.Assign(
		in.Str("worker_id"), in.Str("task"), in.Num("budget"), in.Int("max_steps"),
		s.Day, s.Step, s.Led)
	if code != "" {
		return toolreg.Fail(code, msg)
	}
	return toolreg.OK(map[string]any{"execution_id": x.ID, "max_steps": x.MaxSteps})
}

func handleReadWorkerMessages(s *State, _ toolreg.Input) toolreg.Result {
	var msgs []map[string]any
	for _, m := range s.Workers.UnreadFromWorkers() {
		msgs = append(msgs, map[string]any{
			"id": m.ID, "worker_id": m.WorkerID, "content": m.Content, "step": m.Step,
		})
	}
	var approvals []map[string]any
	for _, x := range s.Workers.PendingApprovals() {
		approvals = append(approvals, map[string]any{
			"execution_id": x.ID,
			"approval_id":  x.Pending.ID,
			"type":         x.Pending.Type,
			"description":  x.Pending.Description,
			"amount":       x.Pending.Amount,
		})
	}
	return toolreg.OK(map[string]any{"messages": msgs, "pending_approvals": approvals})
}
