package handler

import (
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/supplier-orders/internal/domain/draft"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// lineInput is one {"productId","quantity"} entry of a request body.
type lineInput struct {
	ProductID string
	Quantity  int
}

// decodeLines reads an array of line objects. Quantities may be numbers or
// numeric strings; anything else counts as 0 and is filtered later.
func decodeLines(d *jx.Decoder) ([]lineInput, error) {
	var out []lineInput
	err := d.Arr(func(d *jx.Decoder) error {
		var l lineInput
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "productId":
				v, err := d.Str()
				l.ProductID = v
				return err
			case "quantity":
				q, err := decodeQuantity(d)
				l.Quantity = q
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

func decodeQuantity(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, err
		}
		if !n.IsInt() {
			return 0, nil
		}
		v, err := n.Int64()
		if err != nil {
			// Out of range.
			return 0, nil
		}
		return int(v), nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return draft.ParseQuantity(s), nil
	default:
		return 0, d.Skip()
	}
}

// decodeDraftBody parses {"items":[...]} into a product → quantity map. A
// product listed twice keeps its last quantity.
func decodeDraftBody(data []byte) (map[string]int, error) {
	items := make(map[string]int)
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "items" {
			return d.Skip()
		}
		lines, err := decodeLines(d)
		if err != nil {
			return err
		}
		for _, l := range lines {
			items[l.ProductID] = l.Quantity
		}
		return nil
	})
	if err != nil {
		return nil, badRequest(errors.Wrap(err, "decode draft"))
	}
	return items, nil
}

// decodeOrderBody parses {"supplierId","items":[...]}.
func decodeOrderBody(data []byte) (supplierID string, lines []lineInput, err error) {
	err = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "supplierId":
			v, err := d.Str()
			supplierID = v
			return err
		case "items":
			v, err := decodeLines(d)
			lines = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", nil, badRequest(errors.Wrap(err, "decode order"))
	}
	if supplierID == "" {
		return "", nil, badRequest(errors.New("supplierId is required"))
	}
	return supplierID, lines, nil
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeDraft(e *jx.Encoder, d draft.Draft) {
	ids := make([]string, 0, len(d.Items))
	for id := range d.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	e.Obj(func(e *jx.Encoder) {
		e.Field("supplierId", func(e *jx.Encoder) { e.Str(d.SupplierID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range ids {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(id) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(d.Items[id]) })
					})
				}
			})
		})
		if !d.UpdatedAt.IsZero() {
			e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, d.UpdatedAt) })
		}
	})
}

func encodeOrderFields(e *jx.Encoder, o *order.Order) {
	e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
	e.Field("buyerId", func(e *jx.Encoder) { e.Str(o.BuyerID) })
	e.Field("supplierId", func(e *jx.Encoder) { e.Str(o.SupplierID) })
	e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
	e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total()) })
	e.Field("items", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, it := range o.Items {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
					e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
					e.Field("productName", func(e *jx.Encoder) { e.Str(it.ProductName) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, it.UnitPrice) })
				})
			}
		})
	})
	e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
	e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) { encodeOrderFields(e, o) })
}

func encodeView(e *jx.Encoder, v *order.View) {
	e.Obj(func(e *jx.Encoder) {
		encodeOrderFields(e, &v.Order)
		c := v.Counterparty
		e.Field("counterparty", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("partyId", func(e *jx.Encoder) { e.Str(c.PartyID) })
				e.Field("companyName", func(e *jx.Encoder) { e.Str(c.CompanyName) })
				e.Field("contactName", func(e *jx.Encoder) { e.Str(c.ContactName) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(c.Phone) })
				if c.OpeningTime != "" {
					e.Field("openingTime", func(e *jx.Encoder) { e.Str(c.OpeningTime) })
				}
				if c.ClosingTime != "" {
					e.Field("closingTime", func(e *jx.Encoder) { e.Str(c.ClosingTime) })
				}
			})
		})
	})
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("supplierId", func(e *jx.Encoder) { e.Str(p.SupplierID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, p.UnitPrice) })
		e.Field("minQuantity", func(e *jx.Encoder) { e.Int(p.MinQuantity) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
	})
}

func encodeShortfalls(e *jx.Encoder, shortfalls []order.Shortfall) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range shortfalls {
			e.Obj(func(e *jx.Encoder) {
				e.Field("productId", func(e *jx.Encoder) { e.Str(s.ProductID) })
				e.Field("requested", func(e *jx.Encoder) { e.Int(s.Requested) })
				e.Field("available", func(e *jx.Encoder) { e.Int(s.Available) })
				e.Field("missing", func(e *jx.Encoder) { e.Int(s.Missing) })
			})
		}
	})
}
