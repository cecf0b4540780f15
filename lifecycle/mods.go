package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"vslmanager/guard"
	"vslmanager/moddb"
	"vslmanager/mods"
	"vslmanager/paths"
	"vslmanager/state"
	"vslmanager/ui"
)

var errNoCatalog = errors.New("no mod catalog configured")

// ListMods scans the installation's mods, sorted by name for display.
func (m *Manager) ListMods(ctx context.Context, id string) (mods.Result, error) {
	inst, err := m.installation(id)
	if err != nil {
		return mods.Result{}, err
	}
	res, err := m.Scanner.Scan(ctx, inst.Path)
	if err != nil {
		if ctx.Err() != nil {
			return mods.Result{}, ctx.Err()
		}
		return mods.Result{}, ioFailure("scan", mods.ModsDir(inst.Path), err)
	}
	mods.SortByName(res.Mods)
	m.refreshModsCount(ctx, inst, len(res.Mods)+len(res.Errors))
	return res, nil
}

// InstallMod downloads a release of modid into the installation. A zero
// releaseID picks the newest release for the installation's game version.
func (m *Manager) InstallMod(ctx context.Context, id, modid string, releaseID int) (mods.InstalledMod, error) {
	inst, err := m.installation(id)
	if err != nil {
		return mods.InstalledMod{}, err
	}
	if m.Catalog == nil {
		return mods.InstalledMod{}, errNoCatalog
	}
	release, err := m.admit(id, guard.ReasonEditingMods, "Installing mod")
	if err != nil {
		return mods.InstalledMod{}, err
	}
	defer release()

	remote, err := m.Catalog.QueryByModID(ctx, modid)
	if err != nil {
		return mods.InstalledMod{}, m.fail("Failed to look up mod", err)
	}
	rel, err := pickRelease(remote, modid, releaseID, inst.Version)
	if err != nil {
		return mods.InstalledMod{}, err
	}

	dir := mods.ModsDir(inst.Path)
	if err := m.Paths.EnsureDir(dir); err != nil {
		return mods.InstalledMod{}, ioFailure("create", dir, err)
	}
	dest := filepath.Join(dir, filepath.Base(rel.Filename))
	if err := m.Catalog.DownloadModFile(ctx, dest, rel.MainFile); err != nil {
		return mods.InstalledMod{}, m.fail("Failed to download mod", ioFailure("download", dest, err))
	}
	mod, err := mods.ReadInstalledMod(dest)
	if err != nil {
		m.Paths.Delete(dest)
		return mods.InstalledMod{}, m.fail("Downloaded mod is unreadable", ioFailure("read", dest, err))
	}
	mod.Remote = remote

	m.refreshModsCount(ctx, inst, mods.CountMods(inst.Path))
	m.Log.Infow("Mod installed", zap.String("installation", id), zap.String("modid", mod.ModID), zap.String("version", mod.Version))
	m.notify(fmt.Sprintf("%s %s installed", mod.Name, mod.Version), ui.SeveritySuccess)
	return mod, nil
}

// UpdateMod replaces an installed package with another release and
// reconciles the installation again. Refused while the installation is
// busy.
func (m *Manager) UpdateMod(ctx context.Context, id string, mod mods.InstalledMod, releaseID int) (mods.Result, error) {
	inst, err := m.installation(id)
	if err != nil {
		return mods.Result{}, err
	}
	if err := checkModPath(inst, mod.Path); err != nil {
		return mods.Result{}, err
	}
	if m.Catalog == nil {
		return mods.Result{}, errNoCatalog
	}
	release, err := m.admit(id, guard.ReasonEditingMods, "Updating mod")
	if err != nil {
		return mods.Result{}, err
	}
	defer release()

	remote := mod.Remote
	if remote == nil || releaseID == 0 {
		if remote, err = m.Catalog.QueryByModID(ctx, mod.ModID); err != nil {
			return mods.Result{}, m.fail("Failed to look up mod", err)
		}
	}
	rel, err := pickRelease(remote, mod.ModID, releaseID, inst.Version)
	if err != nil {
		return mods.Result{}, err
	}

	dest := filepath.Join(mods.ModsDir(inst.Path), filepath.Base(rel.Filename))
	if err := m.Catalog.DownloadModFile(ctx, dest, rel.MainFile); err != nil {
		return mods.Result{}, m.fail("Failed to download mod", ioFailure("download", dest, err))
	}
	if filepath.Clean(dest) != filepath.Clean(mod.Path) && !m.Paths.Delete(mod.Path) {
		m.Paths.Delete(dest)
		return mods.Result{}, m.fail("Failed to remove old mod version", ioFailure("delete", mod.Path, errors.New("could not remove package")))
	}
	m.Log.Infow("Mod updated", zap.String("installation", id), zap.String("modid", mod.ModID), zap.String("from", mod.Version), zap.String("to", rel.ModVersion))
	m.notify(fmt.Sprintf("%s updated to %s", mod.Name, rel.ModVersion), ui.SeveritySuccess)

	res, err := m.Scanner.Scan(ctx, inst.Path)
	if err != nil {
		return mods.Result{}, ioFailure("scan", mods.ModsDir(inst.Path), err)
	}
	mods.SortByName(res.Mods)
	m.refreshModsCount(ctx, inst, len(res.Mods)+len(res.Errors))
	return res, nil
}

// DeleteMod removes a mod package. Refused while the installation is busy;
// the package is left untouched in that case.
func (m *Manager) DeleteMod(ctx context.Context, id, path string) error {
	inst, err := m.installation(id)
	if err != nil {
		return err
	}
	if err := checkModPath(inst, path); err != nil {
		return err
	}
	release, err := m.admit(id, guard.ReasonEditingMods, "Deleting mod")
	if err != nil {
		return err
	}
	defer release()

	if !m.Paths.Exists(path) {
		return notFound("mod", path)
	}
	if !m.Paths.Delete(path) {
		return m.fail("Failed to delete mod", ioFailure("delete", path, errors.New("could not remove package")))
	}
	m.refreshModsCount(ctx, inst, mods.CountMods(inst.Path))
	m.Log.Infow("Mod deleted", zap.String("installation", id), zap.String("path", path))
	m.notify(fmt.Sprintf("%s deleted", filepath.Base(path)), ui.SeveritySuccess)
	return nil
}

func checkModPath(inst state.Installation, path string) error {
	if path == "" || !filepath.IsAbs(path) {
		return invalid("path", "mod path must be absolute")
	}
	if !paths.IsStrictlyWithin(mods.ModsDir(inst.Path), path) {
		return invalid("path", "%s is not inside the installation's mods folder", path)
	}
	return nil
}

func pickRelease(remote *moddb.Mod, modid string, releaseID int, gameVersion string) (moddb.Release, error) {
	if releaseID != 0 {
		if rel, ok := remote.FindRelease(releaseID); ok {
			return rel, nil
		}
		return moddb.Release{}, notFound("release", fmt.Sprintf("%s#%d", modid, releaseID))
	}
	if rel, ok := mods.LatestRelease(remote, gameVersion); ok {
		return rel, nil
	}
	return moddb.Release{}, notFound("release", fmt.Sprintf("%s for game version %s", modid, gameVersion))
}
