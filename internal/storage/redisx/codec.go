package redisx

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/supplier-orders/internal/domain/draft"
)

func encodeDraft(d draft.Draft) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("buyerId", func(e *jx.Encoder) { e.Str(d.BuyerID) })
		e.Field("supplierId", func(e *jx.Encoder) { e.Str(d.SupplierID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for id, qty := range d.Items {
					e.Field(id, func(e *jx.Encoder) { e.Int(qty) })
				}
			})
		})
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(d.UpdatedAt.UTC().Format(time.RFC3339Nano)) })
	})
	return e.Bytes()
}

func decodeDraft(data []byte) (draft.Draft, error) {
	d := draft.Draft{Items: make(map[string]int)}
	err := jx.DecodeBytes(data).ObjBytes(func(dec *jx.Decoder, key []byte) error {
		switch string(key) {
		case "buyerId":
			v, err := dec.Str()
			d.BuyerID = v
			return err
		case "supplierId":
			v, err := dec.Str()
			d.SupplierID = v
			return err
		case "items":
			return dec.ObjBytes(func(dec *jx.Decoder, id []byte) error {
				qty, err := dec.Int()
				if err != nil {
					return err
				}
				d.Items[string(id)] = qty
				return nil
			})
		case "updatedAt":
			v, err := dec.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return errors.Wrap(err, "parse updatedAt")
			}
			d.UpdatedAt = t
			return nil
		default:
			return dec.Skip()
		}
	})
	if err != nil {
		return draft.Draft{}, errors.Wrap(err, "decode draft")
	}
	return d, nil
}
