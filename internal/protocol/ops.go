package protocol

// Transaction ops.
const (
	OpAddBaker     = "pie.add_baker"
	OpRemoveBaker  = "pie.remove_baker"
	OpReassignChef = "pie.reassign_chef"
	OpOpenKitchen  = "pie.open_kitchen"
	OpCloseKitchen = "pie.close_kitchen"
	OpBakePies     = "pie.bake"
	OpDestroyPies  = "pie.destroy"
	OpTransfer     = "pie.transfer"
	OpApprove      = "pie.approve"
	OpTransferFrom = "pie.transfer_from"

	OpIncreaseAllowance = "pie.increase_allowance"
	OpDecreaseAllowance = "pie.decrease_allowance"

	OpAddResources          = "lab.add_resources"
	OpAddBatchOfResources   = "lab.add_batch_of_resources"
	OpSetApprovalForAll     = "lab.set_approval_for_all"
	OpSafeTransferFrom      = "lab.safe_transfer_from"
	OpSafeBatchTransferFrom = "lab.safe_batch_transfer_from"
	OpLabTransferOwnership  = "lab.transfer_ownership"

	OpBuyLand               = "land.buy"
	OpSetPrice              = "land.set_price"
	OpSetLaboratoryAddress  = "land.set_laboratory_address"
	OpSetTempleAddress      = "land.set_temple_address"
	OpTransferParcel        = "land.transfer_parcel"
	OpLandTransferOwnership = "land.transfer_ownership"

	OpAddDestitute            = "temple.add_destitute"
	OpRemoveDestitute         = "temple.remove_destitute"
	OpDonatePies              = "temple.donate"
	OpDistributeDonatedPies   = "temple.distribute"
	OpSetPieAddress           = "temple.set_pie_address"
	OpTempleTransferOwnership = "temple.transfer_ownership"
)

// Read-only queries.
const (
	QueryPieBalance    = "pie.balance_of"
	QueryPieAllowance  = "pie.allowance"
	QueryPieSupply     = "pie.total_supply"
	QueryKitchen       = "pie.kitchen"
	QueryLabBalance    = "lab.balance_of"
	QueryLabApproval   = "lab.is_approved_for_all"
	QueryParcelOwner   = "land.owner_of"
	QueryParcelBalance = "land.balance_of"
	QueryLandPrice     = "land.price"
	QueryTemplePool    = "temple.pool"
	QueryTempleMember  = "temple.is_destitute"
	QueryTempleMembers = "temple.destitutes"
)

var knownOps = map[string]struct{}{
	OpAddBaker: {}, OpRemoveBaker: {}, OpReassignChef: {}, OpOpenKitchen: {}, OpCloseKitchen: {},
	OpBakePies: {}, OpDestroyPies: {}, OpTransfer: {}, OpApprove: {}, OpTransferFrom: {},
	OpIncreaseAllowance: {}, OpDecreaseAllowance: {},
	OpAddResources: {}, OpAddBatchOfResources: {}, OpSetApprovalForAll: {},
	OpSafeTransferFrom: {}, OpSafeBatchTransferFrom: {}, OpLabTransferOwnership: {},
	OpBuyLand: {}, OpSetPrice: {}, OpSetLaboratoryAddress: {}, OpSetTempleAddress: {},
	OpTransferParcel: {}, OpLandTransferOwnership: {},
	OpAddDestitute: {}, OpRemoveDestitute: {}, OpDonatePies: {}, OpDistributeDonatedPies: {},
	OpSetPieAddress: {}, OpTempleTransferOwnership: {},
}

func IsKnownOp(op string) bool {
	_, ok := knownOps[op]
	return ok
}
