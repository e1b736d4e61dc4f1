package admin

import (
	"errors"
	"fmt"
	"math/big"

	"niftmarket/core/events"
	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/storage"
)

var (
	errAlreadyDeployed  = errors.New("admin: registry already deployed")
	errNotDeployed      = errors.New("admin: registry not deployed")
	errNotOwner         = errors.New("admin: sender is not the owner")
	errNotAdmin         = errors.New("admin: sender is not an admin")
	errSelfTarget       = errors.New("admin: operation may not target the sender")
	errSameOwner        = errors.New("admin: new owner equals current owner")
	errBadRole          = errors.New("admin: role must be user or admin")
	errBadStatus        = errors.New("admin: status must be verified or not-verified")
	errBadFeePercent    = errors.New("admin: fee percent must be 0-100")
	errAlreadyOptedIn   = errors.New("admin: account already opted in")
	errWrongRentTarget  = errors.New("admin: rent payment must fund the registry")
	errCallerNotModule  = errors.New("admin: caller is not the registered module")
	errUserRoleRequired = errors.New("admin: sender must hold the user role")
)

// Operation tags.
const (
	OpDeploy            = "deploy"
	OpOptIn             = "opt_in"
	OpChangeOwnership   = "change_ownership"
	OpSetRole           = "set_role"
	OpSetVerifiedStatus = "set_verified_status"
	OpAddModule         = "add_module"
	OpRemoveModule      = "remove_module"
	OpWithdrawFunds     = "withdraw_funds"
	OpWithdrawAsset     = "withdraw_asset"
	OpSetLocal          = "set_local"
	OpAssetsOptIn       = "assets_opt_in"
	OpCheckPermissions  = "check_permissions"
)

// Registry is the admin program: it owns the platform configuration, the
// role and verification stores, the module registry, and the custody account
// that collects platform fees. Every other program in the marketplace
// resolves its authority through this one.
type Registry struct {
	id      uint64
	emitter events.Emitter
}

// New constructs the registry program bound to its ledger identity.
func New(id uint64) *Registry {
	return &Registry{id: id, emitter: events.NoopEmitter{}}
}

// ID implements ledger.Program.
func (r *Registry) ID() uint64 { return r.id }

// SetEmitter configures the event sink used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Address returns the registry's custody address.
func (r *Registry) Address() types.Address {
	return ledger.ProgramAddress(r.id)
}

func (r *Registry) emit(evt *types.Event) {
	if evt != nil {
		r.emitter.Emit(events.Wrap(evt))
	}
}

func (r *Registry) store(ctx *ledger.Context) *storage.ProgramStore {
	return storage.NewProgramStore(ctx.DB, r.id)
}

func (r *Registry) view(ctx *ledger.Context) *View {
	return NewView(ctx.DB, r.id)
}

// Execute implements ledger.Program.
func (r *Registry) Execute(ctx *ledger.Context) error {
	_, err := ledger.Dispatch(r.routes(), ctx)
	return err
}

func (r *Registry) routes() []ledger.Route {
	return []ledger.Route{
		{Name: OpSetLocal, Check: ledger.All(ledger.SoloCall(OpSetLocal), ledger.ArgCount(5)), Run: r.setLocal},
		{Name: OpChangeOwnership, Check: ledger.All(ledger.SoloCall(OpChangeOwnership), ledger.ArgCount(2)), Run: r.changeOwnership},
		{Name: OpSetRole, Check: ledger.All(ledger.SoloCall(OpSetRole), ledger.ArgCount(3)), Run: r.setRole},
		{Name: OpSetVerifiedStatus, Check: ledger.All(ledger.SoloCall(OpSetVerifiedStatus), ledger.ArgCount(3)), Run: r.setVerifiedStatus},
		{Name: OpAddModule, Check: ledger.All(ledger.SoloCall(OpAddModule), ledger.ArgCount(3)), Run: r.addModule},
		{Name: OpRemoveModule, Check: ledger.All(ledger.SoloCall(OpRemoveModule), ledger.ArgCount(2)), Run: r.removeModule},
		{Name: OpWithdrawFunds, Check: ledger.All(ledger.SoloCall(OpWithdrawFunds), ledger.ArgCount(3)), Run: r.withdrawFunds},
		{Name: OpWithdrawAsset, Check: ledger.All(ledger.SoloCall(OpWithdrawAsset), ledger.ArgCount(3)), Run: r.withdrawAsset},
		{Name: OpDeploy, Check: ledger.All(ledger.SoloCall(OpDeploy), ledger.ArgCount(5)), Run: r.deploy},
		{Name: OpCheckPermissions, Check: ledger.All(
			ledger.GroupSize(3),
			ledger.CallAt(2),
			ledger.TagIs(OpCheckPermissions),
		), Run: r.checkPermissions},
		{Name: OpOptIn, Check: ledger.All(
			ledger.GroupSize(2),
			ledger.ExactPayment(0, ledger.RentAdminOptIn),
			ledger.CallAt(1),
			ledger.TagIs(OpOptIn),
			ledger.SameSender(0, 1),
		), Run: r.optIn},
		{Name: OpAssetsOptIn, Check: ledger.All(
			ledger.GroupSize(2),
			ledger.ExactPayment(0, ledger.RentDualAssetOptIn),
			ledger.CallAt(1),
			ledger.TagIs(OpAssetsOptIn),
			ledger.SameSender(0, 1),
		), Run: r.assetsOptIn},
	}
}

func (r *Registry) requireDeployed(ctx *ledger.Context) (*View, error) {
	view := r.view(ctx)
	if _, err := view.Owner(); errors.Is(err, storage.ErrNotFound) {
		return nil, errNotDeployed
	} else if err != nil {
		return nil, err
	}
	return view, nil
}

func (r *Registry) requireOwner(ctx *ledger.Context) (*View, error) {
	view, err := r.requireDeployed(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := view.Owner()
	if err != nil {
		return nil, err
	}
	if ctx.Sender() != owner {
		return nil, errNotOwner
	}
	return view, nil
}

func (r *Registry) requireAdmin(ctx *ledger.Context) (*View, error) {
	view, err := r.requireDeployed(ctx)
	if err != nil {
		return nil, err
	}
	role, err := view.Role(ctx.Sender())
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin {
		return nil, errNotAdmin
	}
	return view, nil
}

// deploy initialises the registry: args are the first admin address, the
// platform fee percent, and the two registered asset identities. The sender
// becomes the owner. One-shot: redeploying is rejected.
func (r *Registry) deploy(ctx *ledger.Context) error {
	store := r.store(ctx)
	if ok, err := store.HasGlobal(keyOwner); err != nil {
		return err
	} else if ok {
		return errAlreadyDeployed
	}
	firstAdmin, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	feePercent, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	if feePercent > 100 {
		return errBadFeePercent
	}
	rewardAsset, err := ctx.UintArg(3)
	if err != nil {
		return err
	}
	stableAsset, err := ctx.UintArg(4)
	if err != nil {
		return err
	}
	owner := ctx.Sender()
	if err := store.SetGlobal(keyOwner, owner.Bytes()); err != nil {
		return err
	}
	if err := store.SetGlobal(keyFirstAdmin, firstAdmin.Bytes()); err != nil {
		return err
	}
	if err := store.SetGlobal(keyFeePercent, ledger.EncodeUint64(feePercent)); err != nil {
		return err
	}
	if err := store.SetGlobal(keyRewardAsset, ledger.EncodeUint64(rewardAsset)); err != nil {
		return err
	}
	if err := store.SetGlobal(keyStableAsset, ledger.EncodeUint64(stableAsset)); err != nil {
		return err
	}
	if err := store.SetGlobal(keyVerifiedCreators, ledger.EncodeUint64(0)); err != nil {
		return err
	}
	r.emit(DeployedEvent(owner.Hex(), firstAdmin.Hex(), feePercent))
	return nil
}

// optIn opens local state for the sender. The first admin (or the owner)
// lands on the admin role; everyone else starts as a user. The first-admin
// slot is consumed on use so it cannot mint a second admin.
func (r *Registry) optIn(ctx *ledger.Context) error {
	if ctx.Group.Leg(0).Receiver != r.Address() {
		return errWrongRentTarget
	}
	view, err := r.requireDeployed(ctx)
	if err != nil {
		return err
	}
	store := r.store(ctx)
	sender := ctx.Sender()
	if ok, err := store.HasLocal(sender[:], keyRole); err != nil {
		return err
	} else if ok {
		return errAlreadyOptedIn
	}

	role := RoleUser
	owner, err := view.Owner()
	if err != nil {
		return err
	}
	firstAdmin, err := view.globalAddress(keyFirstAdmin)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	switch {
	case sender == owner:
		role = RoleAdmin
	case !firstAdmin.IsZero() && sender == firstAdmin:
		role = RoleAdmin
		if err := store.SetGlobal(keyFirstAdmin, types.ZeroAddress.Bytes()); err != nil {
			return err
		}
	}

	if err := store.SetLocal(sender[:], keyRole, ledger.EncodeUint64(uint64(role))); err != nil {
		return err
	}
	if err := store.SetLocal(sender[:], keyStatus, ledger.EncodeUint64(uint64(StatusNotVerified))); err != nil {
		return err
	}
	r.emit(OptedInEvent(sender.Hex(), uint64(role)))
	return nil
}

func (r *Registry) changeOwnership(ctx *ledger.Context) error {
	_, err := r.requireOwner(ctx)
	if err != nil {
		return err
	}
	next, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	if next == ctx.Sender() {
		return errSameOwner
	}
	if err := r.store(ctx).SetGlobal(keyOwner, next.Bytes()); err != nil {
		return err
	}
	r.emit(OwnershipChangedEvent(ctx.Sender().Hex(), next.Hex()))
	return nil
}

// setRole assigns a role. The owner may set any target; an admin may set any
// target except themselves.
func (r *Registry) setRole(ctx *ledger.Context) error {
	view, err := r.requireDeployed(ctx)
	if err != nil {
		return err
	}
	target, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	value, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	role := Role(value)
	if role != RoleUser && role != RoleAdmin {
		return errBadRole
	}

	sender := ctx.Sender()
	owner, err := view.Owner()
	if err != nil {
		return err
	}
	if sender != owner {
		senderRole, err := view.Role(sender)
		if err != nil {
			return err
		}
		if senderRole != RoleAdmin {
			return errNotAdmin
		}
		if target == sender {
			return errSelfTarget
		}
	}

	store := r.store(ctx)
	if ok, err := store.HasLocal(target[:], keyRole); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNotOptedIn, target.Hex())
	}
	if err := store.SetLocal(target[:], keyRole, ledger.EncodeUint64(uint64(role))); err != nil {
		return err
	}
	r.emit(RoleSetEvent(sender.Hex(), target.Hex(), uint64(role)))
	return nil
}

// setVerifiedStatus toggles a creator's verification and keeps the verified
// counter in lock-step: +1 on verify, -1 on unverify, no drift on no-ops
// because re-setting the current status is rejected.
func (r *Registry) setVerifiedStatus(ctx *ledger.Context) error {
	view, err := r.requireAdmin(ctx)
	if err != nil {
		return err
	}
	target, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	if target == ctx.Sender() {
		return errSelfTarget
	}
	value, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	status := Status(value)
	if status != StatusVerified && status != StatusNotVerified {
		return errBadStatus
	}
	current, err := view.Status(target)
	if err != nil {
		return err
	}
	if current == status {
		return fmt.Errorf("admin: status already %d for %s", status, target.Hex())
	}

	count, err := view.VerifiedCreators()
	if err != nil {
		return err
	}
	if status == StatusVerified {
		count++
	} else {
		if count == 0 {
			return errors.New("admin: verified counter underflow")
		}
		count--
	}
	store := r.store(ctx)
	if err := store.SetLocal(target[:], keyStatus, ledger.EncodeUint64(uint64(status))); err != nil {
		return err
	}
	if err := store.SetGlobal(keyVerifiedCreators, ledger.EncodeUint64(count)); err != nil {
		return err
	}
	r.emit(StatusSetEvent(ctx.Sender().Hex(), target.Hex(), uint64(status), count))
	return nil
}

func (r *Registry) addModule(ctx *ledger.Context) error {
	if _, err := r.requireAdmin(ctx); err != nil {
		return err
	}
	name, err := ctx.Arg(1)
	if err != nil {
		return err
	}
	programID, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	if len(name) == 0 {
		return errors.New("admin: module name required")
	}
	if err := r.store(ctx).SetGlobal(modulePrefix+string(name), ledger.EncodeUint64(programID)); err != nil {
		return err
	}
	r.emit(ModuleAddedEvent(string(name), programID))
	return nil
}

func (r *Registry) removeModule(ctx *ledger.Context) error {
	if _, err := r.requireAdmin(ctx); err != nil {
		return err
	}
	name, err := ctx.Arg(1)
	if err != nil {
		return err
	}
	store := r.store(ctx)
	if ok, err := store.HasGlobal(modulePrefix + string(name)); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotRegistered, name)
	}
	if err := store.DeleteGlobal(modulePrefix + string(name)); err != nil {
		return err
	}
	r.emit(ModuleRemovedEvent(string(name)))
	return nil
}

func (r *Registry) withdrawFunds(ctx *ledger.Context) error {
	if _, err := r.requireOwner(ctx); err != nil {
		return err
	}
	beneficiary, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	amount, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	if err := ctx.Bank.Transfer(r.Address(), beneficiary, new(big.Int).SetUint64(amount)); err != nil {
		return err
	}
	r.emit(WithdrawnEvent(beneficiary.Hex(), "native", amount))
	return nil
}

func (r *Registry) withdrawAsset(ctx *ledger.Context) error {
	if _, err := r.requireOwner(ctx); err != nil {
		return err
	}
	beneficiary, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	amount, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	assetID, err := ctx.Asset(0)
	if err != nil {
		return err
	}
	if err := ctx.Bank.TransferAsset(r.Address(), beneficiary, assetID, new(big.Int).SetUint64(amount)); err != nil {
		return err
	}
	r.emit(WithdrawnEvent(beneficiary.Hex(), fmt.Sprintf("asset/%d", assetID), amount))
	return nil
}

// setLocal is the cross-module gateway: a registered module writes into an
// account's local state under the registry. The capability check compares
// the calling program's identity against the registry entry for the named
// module; external senders have caller zero and always fail it.
func (r *Registry) setLocal(ctx *ledger.Context) error {
	view, err := r.requireDeployed(ctx)
	if err != nil {
		return err
	}
	name, err := ctx.Arg(1)
	if err != nil {
		return err
	}
	moduleID, err := view.ModuleID(string(name))
	if err != nil {
		return err
	}
	if ctx.Caller == 0 || ctx.Caller != moduleID {
		return fmt.Errorf("%w: %s expects program %d, called by %d", errCallerNotModule, name, moduleID, ctx.Caller)
	}
	target, err := ctx.AddressArg(2)
	if err != nil {
		return err
	}
	key, err := ctx.Arg(3)
	if err != nil {
		return err
	}
	rawValue, err := ctx.Arg(4)
	if err != nil {
		return err
	}
	value, err := ledger.DecodeValue(rawValue)
	if err != nil {
		return err
	}
	encoded, err := value.Encode()
	if err != nil {
		return err
	}
	return r.store(ctx).SetLocal(target[:], string(key), encoded)
}

// checkPermissions is the billing permission leg: the third leg of a
// subscribe or renew group targets the registry, and its sender must hold
// the admin role. The registry mutates nothing here; the billing module
// reads the leg's arguments after this gate passes.
func (r *Registry) checkPermissions(ctx *ledger.Context) error {
	view, err := r.requireDeployed(ctx)
	if err != nil {
		return err
	}
	role, err := view.Role(ctx.Sender())
	if err != nil {
		return err
	}
	if role != RoleAdmin {
		return errNotAdmin
	}
	return nil
}

// assetsOptIn opts the registry custody account into both registered assets
// so it can receive fee payments in either.
func (r *Registry) assetsOptIn(ctx *ledger.Context) error {
	if ctx.Group.Leg(0).Receiver != r.Address() {
		return errWrongRentTarget
	}
	view, err := r.requireDeployed(ctx)
	if err != nil {
		return err
	}
	role, err := view.Role(ctx.Sender())
	if err != nil {
		return err
	}
	if role != RoleUser {
		return errUserRoleRequired
	}
	rewardAsset, err := view.RewardAssetID()
	if err != nil {
		return err
	}
	stableAsset, err := view.StableAssetID()
	if err != nil {
		return err
	}
	if err := ctx.Bank.OptInAsset(r.Address(), rewardAsset); err != nil {
		return err
	}
	if err := ctx.Bank.OptInAsset(r.Address(), stableAsset); err != nil {
		return err
	}
	r.emit(AssetsOptedInEvent(rewardAsset, stableAsset))
	return nil
}

// SetLocalLeg builds the inner app-call leg a module submits through the
// invoker to write into the registry's local store.
func SetLocalLeg(registryID uint64, sender types.Address, module string, target types.Address, key string, value ledger.Value) (ledger.Leg, error) {
	encoded, err := value.Encode()
	if err != nil {
		return ledger.Leg{}, err
	}
	return ledger.Leg{
		Kind:   ledger.LegAppCall,
		Sender: sender,
		Target: registryID,
		Args: [][]byte{
			[]byte(OpSetLocal),
			[]byte(module),
			target.Bytes(),
			[]byte(key),
			encoded,
		},
	}, nil
}
