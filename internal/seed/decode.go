package seed

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// Decode parses a JSON fixture and validates roles, link statuses and
// product fields.
func Decode(data []byte) (*Fixture, error) {
	var f Fixture
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "parties":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeParty(d)
				f.Parties = append(f.Parties, p)
				return err
			})
		case "links":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLink(d)
				f.Links = append(f.Links, l)
				return err
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				f.Products = append(f.Products, p)
				return err
			})
		case "apiKeys":
			return d.Arr(func(d *jx.Decoder) error {
				k, err := decodeAPIKey(d)
				f.APIKeys = append(f.APIKeys, k)
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode fixture")
	}
	return &f, nil
}

func decodeParty(d *jx.Decoder) (Party, error) {
	var p Party
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.Contact.PartyID, err = d.Str()
		case "role":
			var s string
			s, err = d.Str()
			p.Role = auth.Role(s)
		case "companyName":
			p.Contact.CompanyName, err = d.Str()
		case "contactName":
			p.Contact.ContactName, err = d.Str()
		case "phone":
			p.Contact.Phone, err = d.Str()
		case "openingTime":
			p.Contact.OpeningTime, err = d.Str()
		case "closingTime":
			p.Contact.ClosingTime, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, err
	}
	if p.Contact.PartyID == "" {
		return p, errors.New("party without id")
	}
	if !p.Role.Valid() {
		return p, errors.Errorf("party %s: unknown role %q", p.Contact.PartyID, p.Role)
	}
	return p, nil
}

func decodeLink(d *jx.Decoder) (Link, error) {
	l := Link{Status: auth.LinkApproved}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "buyerId":
			l.BuyerID, err = d.Str()
		case "supplierId":
			l.SupplierID, err = d.Str()
		case "status":
			var s string
			s, err = d.Str()
			l.Status = auth.LinkStatus(s)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return l, err
	}
	if !l.Status.Valid() {
		return l, errors.Errorf("link %s -> %s: unknown status %q", l.BuyerID, l.SupplierID, l.Status)
	}
	return l, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	p := product.Product{MinQuantity: 1}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "supplierId":
			p.SupplierID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "unitPrice":
			p.UnitPrice, err = decodeDecimal(d)
		case "minQuantity":
			p.MinQuantity, err = d.Int()
		case "stock":
			p.Stock, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, err
	}
	switch {
	case p.ID == "" || p.SupplierID == "":
		return p, errors.Errorf("product %q: id and supplierId are required", p.ID)
	case p.UnitPrice.IsNegative():
		return p, errors.Errorf("product %s: negative price", p.ID)
	case p.Stock < 0 || p.MinQuantity < 1:
		return p, errors.Errorf("product %s: invalid stock or minimum quantity", p.ID)
	}
	return p, nil
}

func decodeAPIKey(d *jx.Decoder) (APIKey, error) {
	var k APIKey
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			k.ID, err = d.Str()
		case "key":
			k.Key, err = d.Str()
		case "partyId":
			k.PartyID, err = d.Str()
		case "role":
			var s string
			s, err = d.Str()
			k.Role = auth.Role(s)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return k, err
	}
	if k.ID == "" || k.Key == "" || k.PartyID == "" || !k.Role.Valid() {
		return k, errors.Errorf("api key %q: id, key, partyId and a valid role are required", k.ID)
	}
	return k, nil
}

// decodeDecimal accepts prices as JSON numbers or strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "price %s", strconv.Quote(raw))
	}
	return v, nil
}
