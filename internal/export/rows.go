package export

import (
	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/shopspring/decimal"
)

var denormalizedColumns = map[record.Kind][]string{
	record.KindInvoice: {
		"image_id", "image_filename",
		"invoice_number", "invoice_date", "due_date", "template_used",
		"sender_name", "sender_address", "recipient_name", "recipient_address",
		"line_item_index", "item_description", "item_quantity", "item_unit_price", "item_total",
		"invoice_subtotal", "invoice_tax_rate", "invoice_tax_amount", "invoice_total", "currency",
	},
	record.KindReceipt: {
		"image_id", "image_filename",
		"receipt_number", "transaction_id", "timestamp", "template_used",
		"store_name", "store_address", "store_phone", "store_category",
		"line_item_index", "item_description", "item_category", "item_quantity", "item_unit_price", "item_total",
		"receipt_subtotal", "receipt_tax_rate", "receipt_tax_amount", "receipt_total",
		"payment_method", "card_last_four", "currency",
	},
	record.KindStatement: {
		"image_id", "image_filename",
		"bank_name", "bank_address", "account_holder", "account_holder_address",
		"account_number_masked", "sort_code",
		"period_start", "period_end", "issue_date", "template_used",
		"opening_balance", "closing_balance",
		"transaction_index", "transaction_date", "transaction_description", "transaction_category",
		"debit", "credit", "balance", "currency",
	},
}

var summaryColumns = map[record.Kind][]string{
	record.KindInvoice: {
		"image_id", "invoice_number", "date", "due_date", "sender", "recipient", "template",
		"num_line_items", "subtotal", "tax_rate", "tax_amount", "total", "currency",
	},
	record.KindReceipt: {
		"image_id", "receipt_number", "transaction_id", "timestamp", "store_name", "store_category", "template",
		"num_items", "subtotal", "tax_rate", "tax_amount", "total", "payment_method", "card_last_four", "currency",
	},
	record.KindStatement: {
		"image_id", "bank_name", "account_holder", "account_number_masked", "sort_code",
		"period_start", "period_end", "issue_date", "template",
		"num_transactions", "opening_balance", "total_debits", "total_credits", "closing_balance", "currency",
	},
}

func (a Aggregator) invoiceRows(inv *record.Invoice) []Row {
	rows := make([]Row, 0, len(inv.LineItems))
	for i, l := range inv.LineItems {
		rows = append(rows, Row{
			"image_id":           inv.ID,
			"image_filename":     a.imageFilename(inv.ID),
			"invoice_number":     inv.InvoiceNumber,
			"invoice_date":       inv.Date,
			"due_date":           inv.DueDate,
			"template_used":      inv.TemplateUsed(),
			"sender_name":        inv.SenderName,
			"sender_address":     inv.SenderAddress,
			"recipient_name":     inv.RecipientName,
			"recipient_address":  inv.RecipientAddress,
			"line_item_index":    i,
			"item_description":   l.Description,
			"item_quantity":      l.Quantity,
			"item_unit_price":    l.UnitPrice,
			"item_total":         l.Total,
			"invoice_subtotal":   inv.Subtotal,
			"invoice_tax_rate":   inv.TaxRate,
			"invoice_tax_amount": inv.TaxAmount,
			"invoice_total":      inv.Total,
			"currency":           inv.Currency,
		})
	}
	return rows
}

func invoiceSummary(inv *record.Invoice) Row {
	return Row{
		"image_id":       inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"date":           inv.Date,
		"due_date":       inv.DueDate,
		"sender":         inv.SenderName,
		"recipient":      inv.RecipientName,
		"template":       inv.TemplateUsed(),
		"num_line_items": len(inv.LineItems),
		"subtotal":       inv.Subtotal,
		"tax_rate":       inv.TaxRate,
		"tax_amount":     inv.TaxAmount,
		"total":          inv.Total,
		"currency":       inv.Currency,
	}
}

func (a Aggregator) receiptRows(r *record.Receipt) []Row {
	rows := make([]Row, 0, len(r.Items))
	for i, it := range r.Items {
		rows = append(rows, Row{
			"image_id":           r.ID,
			"image_filename":     a.imageFilename(r.ID),
			"receipt_number":     r.ReceiptNumber,
			"transaction_id":     r.TransactionID,
			"timestamp":          r.Timestamp,
			"template_used":      r.TemplateUsed(),
			"store_name":         r.StoreName,
			"store_address":      r.StoreAddress,
			"store_phone":        r.StorePhone,
			"store_category":     r.StoreCategory,
			"line_item_index":    i,
			"item_description":   it.Description,
			"item_category":      it.Category,
			"item_quantity":      it.Quantity,
			"item_unit_price":    it.UnitPrice,
			"item_total":         it.Total,
			"receipt_subtotal":   r.Subtotal,
			"receipt_tax_rate":   r.TaxRate,
			"receipt_tax_amount": r.TaxAmount,
			"receipt_total":      r.Total,
			"payment_method":     r.PaymentMethod.Name,
			"card_last_four":     optString(r.CardLastFour),
			"currency":           r.Currency,
		})
	}
	return rows
}

func receiptSummary(r *record.Receipt) Row {
	return Row{
		"image_id":       r.ID,
		"receipt_number": r.ReceiptNumber,
		"transaction_id": r.TransactionID,
		"timestamp":      r.Timestamp,
		"store_name":     r.StoreName,
		"store_category": r.StoreCategory,
		"template":       r.TemplateUsed(),
		"num_items":      len(r.Items),
		"subtotal":       r.Subtotal,
		"tax_rate":       r.TaxRate,
		"tax_amount":     r.TaxAmount,
		"total":          r.Total,
		"payment_method": r.PaymentMethod.Name,
		"card_last_four": optString(r.CardLastFour),
		"currency":       r.Currency,
	}
}

func (a Aggregator) statementRows(s *record.Statement) []Row {
	parent := func() Row {
		return Row{
			"image_id":               s.ID,
			"image_filename":         a.imageFilename(s.ID),
			"bank_name":              s.BankName,
			"bank_address":           s.BankAddress,
			"account_holder":         s.AccountHolder,
			"account_holder_address": s.AccountHolderAddress,
			"account_number_masked":  s.AccountNumberMasked,
			"sort_code":              s.SortCode,
			"period_start":           s.PeriodStart,
			"period_end":             s.PeriodEnd,
			"issue_date":             s.IssueDate,
			"template_used":          s.TemplateUsed(),
			"opening_balance":        s.OpeningBalance,
			"closing_balance":        s.ClosingBalance,
			"currency":               s.Currency,
		}
	}
	if len(s.Transactions) == 0 {
		row := parent()
		for _, c := range []string{"transaction_index", "transaction_date", "transaction_description", "transaction_category", "debit", "credit", "balance"} {
			row[c] = nil
		}
		return []Row{row}
	}

	rows := make([]Row, 0, len(s.Transactions))
	for i, tx := range s.Transactions {
		row := parent()
		row["transaction_index"] = i
		row["transaction_date"] = tx.Date
		row["transaction_description"] = tx.Description
		row["transaction_category"] = tx.Category
		row["debit"] = optDecimal(tx.Debit)
		row["credit"] = optDecimal(tx.Credit)
		row["balance"] = tx.Balance
		rows = append(rows, row)
	}
	return rows
}

func statementSummary(s *record.Statement) Row {
	return Row{
		"image_id":              s.ID,
		"bank_name":             s.BankName,
		"account_holder":        s.AccountHolder,
		"account_number_masked": s.AccountNumberMasked,
		"sort_code":             s.SortCode,
		"period_start":          s.PeriodStart,
		"period_end":            s.PeriodEnd,
		"issue_date":            s.IssueDate,
		"template":              s.TemplateUsed(),
		"num_transactions":      len(s.Transactions),
		"opening_balance":       s.OpeningBalance,
		"total_debits":          s.TotalDebits(),
		"total_credits":         s.TotalCredits(),
		"closing_balance":       s.ClosingBalance,
		"currency":              s.Currency,
	}
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}
