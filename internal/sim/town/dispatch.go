package town

import (
	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/laboratory"
	"cryptotown.ai/internal/sim/land"
	"cryptotown.ai/internal/sim/ledger"
)

type handler func(t *Town, tx *protocol.TxMsg, now int64) error

var handlers = map[string]handler{
	protocol.OpAddBaker: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.pie.AddBaker(caller(tx), acct(tx.Target))
	},
	protocol.OpRemoveBaker: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.pie.RemoveBaker(caller(tx), acct(tx.Target))
	},
	protocol.OpReassignChef: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.pie.ReassignChef(caller(tx), acct(tx.Target))
	},
	protocol.OpOpenKitchen: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.pie.OpenKitchen(caller(tx))
	},
	protocol.OpCloseKitchen: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.pie.CloseKitchen(caller(tx))
	},
	protocol.OpBakePies: func(t *Town, tx *protocol.TxMsg, now int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.pie.BakePies(caller(tx), amount, now)
	},
	protocol.OpDestroyPies: func(t *Town, tx *protocol.TxMsg, now int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.pie.DestroyPies(caller(tx), amount, now)
	},
	protocol.OpTransfer: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.pie.Transfer(caller(tx), acct(tx.To), amount)
	},
	protocol.OpApprove: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.pie.Approve(caller(tx), acct(tx.Target), amount)
	},
	protocol.OpTransferFrom: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.pie.TransferFrom(caller(tx), acct(tx.From), acct(tx.To), amount)
	},
	protocol.OpIncreaseAllowance: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.pie.IncreaseAllowance(caller(tx), acct(tx.Target), amount)
	},
	protocol.OpDecreaseAllowance: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.pie.DecreaseAllowance(caller(tx), acct(tx.Target), amount)
	},

	protocol.OpAddResources: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.lab.AddResources(caller(tx), laboratory.Kind(tx.Kind), amount, tx.Data, acct(tx.To))
	},
	protocol.OpAddBatchOfResources: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amounts, err := parseAmounts(tx.Amounts)
		if err != nil {
			return err
		}
		return t.lab.AddBatchOfResources(caller(tx), kinds(tx.Kinds), amounts, tx.Data, acct(tx.To))
	},
	protocol.OpSetApprovalForAll: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.lab.SetApprovalForAll(caller(tx), acct(tx.Target), tx.Approved)
	},
	protocol.OpSafeTransferFrom: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.lab.SafeTransferFrom(caller(tx), acct(tx.From), acct(tx.To), laboratory.Kind(tx.Kind), amount, tx.Data)
	},
	protocol.OpSafeBatchTransferFrom: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amounts, err := parseAmounts(tx.Amounts)
		if err != nil {
			return err
		}
		return t.lab.SafeBatchTransferFrom(caller(tx), acct(tx.From), acct(tx.To), kinds(tx.Kinds), amounts, tx.Data)
	},
	protocol.OpLabTransferOwnership: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.lab.TransferOwnership(caller(tx), acct(tx.Target))
	},

	protocol.OpBuyLand: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		_, err := t.land.Buy(caller(tx), combo(tx.Combo))
		return err
	},
	protocol.OpSetPrice: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		prices, err := parseAmounts(tx.Prices)
		if err != nil {
			return err
		}
		return t.land.SetPrice(caller(tx), combo(tx.Combo), prices)
	},
	protocol.OpSetLaboratoryAddress: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.land.SetLaboratoryAddress(caller(tx), acct(tx.Target))
	},
	protocol.OpSetTempleAddress: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.land.SetTempleAddress(caller(tx), acct(tx.Target))
	},
	protocol.OpTransferParcel: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.land.TransferParcel(caller(tx), acct(tx.To), tx.ParcelID)
	},
	protocol.OpLandTransferOwnership: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.land.TransferOwnership(caller(tx), acct(tx.Target))
	},

	protocol.OpAddDestitute: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.temple.AddDestitute(caller(tx), acct(tx.Target))
	},
	protocol.OpRemoveDestitute: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.temple.RemoveDestitute(caller(tx), acct(tx.Target))
	},
	protocol.OpDonatePies: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		amount, err := ledger.ParseAmount(tx.Amount)
		if err != nil {
			return err
		}
		return t.temple.DonatePies(caller(tx), amount)
	},
	protocol.OpDistributeDonatedPies: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.temple.DistributeDonatedPies(caller(tx))
	},
	protocol.OpSetPieAddress: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.temple.SetPieAddress(caller(tx), acct(tx.Target))
	},
	protocol.OpTempleTransferOwnership: func(t *Town, tx *protocol.TxMsg, _ int64) error {
		return t.temple.TransferOwnership(caller(tx), acct(tx.Target))
	},
}

func caller(tx *protocol.TxMsg) ledger.Account { return ledger.ParseAccount(tx.Caller) }
func acct(s string) ledger.Account             { return ledger.ParseAccount(s) }

// combo keeps unknown names as-is so the marketplace reports them.
func combo(s string) land.Combo {
	if c, ok := land.ParseCombo(s); ok {
		return c
	}
	return land.Combo(s)
}

func kinds(ks []int) []laboratory.Kind {
	out := make([]laboratory.Kind, len(ks))
	for i, k := range ks {
		out[i] = laboratory.Kind(k)
	}
	return out
}

func parseAmounts(ss []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(ss))
	for i, s := range ss {
		v, err := ledger.ParseAmount(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
