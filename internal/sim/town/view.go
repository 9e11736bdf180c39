package town

import (
	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/laboratory"
	"cryptotown.ai/internal/sim/ledger"
	"cryptotown.ai/internal/sim/pie"
)

// Query answers a read-only question. It never touches the journal.
func (t *Town) Query(q protocol.QueryMsg) protocol.QueryResultMsg {
	res := protocol.QueryResultMsg{
		Type:            protocol.TypeQueryResult,
		ProtocolVersion: protocol.Version,
		ID:              q.ID,
	}
	out, err := t.view(q)
	if err != nil {
		res.Code = ledger.CodeOf(err)
		res.Message = messageOf(err)
		return res
	}
	res.OK = true
	res.Result = out
	return res
}

func (t *Town) view(q protocol.QueryMsg) (protocol.Event, error) {
	account := acct(q.Account)
	switch q.Query {
	case protocol.QueryPieBalance:
		return protocol.Event{"account": account.String(), "balance": t.pie.BalanceOf(account).Dec()}, nil
	case protocol.QueryPieAllowance:
		spender := acct(q.Operator)
		return protocol.Event{
			"owner":     account.String(),
			"spender":   spender.String(),
			"allowance": t.pie.Allowance(account, spender).Dec(),
		}, nil
	case protocol.QueryPieSupply:
		return protocol.Event{
			"name":         pie.Name,
			"symbol":       pie.Symbol,
			"decimals":     pie.Decimals,
			"total_supply": t.pie.TotalSupply().Dec(),
		}, nil
	case protocol.QueryKitchen:
		out := protocol.Event{
			"chef":           t.pie.Chef().String(),
			"bakers":         names(t.pie.Bakers()),
			"closed":         t.pie.IsKitchenClosed(),
			"rate_cap":       t.pie.RateCap().Dec(),
			"window_seconds": t.pie.WindowSeconds(),
		}
		if !account.IsNull() {
			w := t.pie.Window(account, t.Now())
			out["account"] = account.String()
			out["is_chef"] = t.pie.IsChef(account)
			out["is_baker"] = t.pie.IsBaker(account)
			out["window_start"] = w.Start
			out["window_volume"] = w.Volume.Dec()
		}
		return out, nil
	case protocol.QueryLabBalance:
		k := laboratory.Kind(q.Kind)
		if !k.Valid() {
			return nil, ledger.Errf(protocol.ErrBadRequest, "unknown resource kind %d", q.Kind)
		}
		all := make([]laboratory.Kind, laboratory.NumKinds)
		owners := make([]ledger.Account, laboratory.NumKinds)
		for i := range all {
			all[i] = laboratory.Kind(i)
			owners[i] = account
		}
		balances, err := t.lab.BalanceOfBatch(owners, all)
		if err != nil {
			return nil, err
		}
		return protocol.Event{
			"account":  account.String(),
			"kind":     k.String(),
			"balance":  t.lab.BalanceOf(account, k).Dec(),
			"balances": decs(balances),
		}, nil
	case protocol.QueryLabApproval:
		op := acct(q.Operator)
		return protocol.Event{
			"owner":    account.String(),
			"operator": op.String(),
			"approved": t.lab.IsApprovedForAll(account, op),
		}, nil
	case protocol.QueryParcelOwner:
		owner, err := t.land.OwnerOf(q.ParcelID)
		if err != nil {
			return nil, err
		}
		return protocol.Event{"land_id": q.ParcelID, "owner": owner.String()}, nil
	case protocol.QueryParcelBalance:
		return protocol.Event{"account": account.String(), "parcels": t.land.BalanceOf(account)}, nil
	case protocol.QueryLandPrice:
		c := combo(q.Combo)
		price := t.land.Price(c)
		if len(price) == 0 {
			return nil, ledger.Errf(protocol.ErrBadRequest, "unknown payment combination %q", q.Combo)
		}
		kinds := c.Kinds()
		named := make([]string, len(kinds))
		for i, k := range kinds {
			named[i] = k.String()
		}
		return protocol.Event{"combo": string(c), "kinds": named, "prices": decs(price)}, nil
	case protocol.QueryTemplePool:
		pool, err := t.temple.PoolBalance()
		if err != nil {
			return nil, err
		}
		return protocol.Event{
			"pool":      pool.Dec(),
			"threshold": t.temple.Threshold().Dec(),
			"members":   len(t.temple.Destitutes()),
		}, nil
	case protocol.QueryTempleMember:
		return protocol.Event{"account": account.String(), "destitute": t.temple.IsDestitute(account)}, nil
	case protocol.QueryTempleMembers:
		return protocol.Event{"destitutes": names(t.temple.Destitutes())}, nil
	}
	return nil, ledger.Errf(protocol.ErrBadRequest, "unknown query %q", q.Query)
}

func names(as []ledger.Account) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.String()
	}
	return out
}

func decs(vs []*uint256.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Dec()
	}
	return out
}
